package entities

// Voice is one voice offered by a speech engine
type Voice struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Locale  string `json:"locale"`
	Default bool   `json:"default,omitempty"`
}

// Utterance is a single request to speak text aloud. A nil Voice selects the
// engine default.
type Utterance struct {
	Text   string
	Voice  *Voice
	Rate   float64
	Pitch  float64
	Volume float64
}
