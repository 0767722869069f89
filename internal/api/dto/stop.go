package dto

type StopResponse struct {
	Day        string  `json:"day"`
	Route      string  `json:"route,omitempty"`
	Department string  `json:"department,omitempty"`
	Label      string  `json:"label"`
	Coords     string  `json:"coords"`
	Lon        float64 `json:"lon"`
	Lat        float64 `json:"lat"`
}

type ListStopsResponse struct {
	Stops []StopResponse `json:"stops"`
}
