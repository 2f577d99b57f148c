package notify

// SessionPayload is the payload carried by guardian_started,
// location_update and checkin_missed notifications.
type SessionPayload struct {
	SessionID      string   `json:"session_id"`
	OwnerID        string   `json:"owner_id"`
	Destination    string   `json:"destination,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lng            *float64 `json:"lng,omitempty"`
	Zone           string   `json:"zone,omitempty"`
	OverdueMinutes int      `json:"overdue_minutes,omitempty"`
}

// IncidentPayload is the payload carried by sos_raised and sos_resolved
// notifications.
type IncidentPayload struct {
	IncidentID string  `json:"incident_id"`
	ReporterID string  `json:"reporter_id"`
	Category   string  `json:"category,omitempty"`
	Priority   string  `json:"priority,omitempty"`
	Status     string  `json:"status"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Zone       string  `json:"zone,omitempty"`
}

// BroadcastPayload is the payload carried by safety_broadcast
// notifications.
type BroadcastPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
