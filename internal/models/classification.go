package models

// AttributeScore is the winning value of one dimension. Fallback is set when
// the model's label could not be mapped and the dimension default was used.
type AttributeScore struct {
	Value    string  `json:"value"`
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
	Fallback bool    `json:"fallback,omitempty"`
}

// ClassificationResult is the resolved outcome for one frame. It is written
// onto the frame and never stored on its own.
type ClassificationResult struct {
	Weather    AttributeScore `json:"weather"`
	TimeOfDay  AttributeScore `json:"time_of_day"`
	RoadType   AttributeScore `json:"road_type"`
	Lanes      AttributeScore `json:"lanes"`
	LaneCount  int            `json:"lane_count"`
	Confidence float64        `json:"confidence"`
	Backend    string         `json:"backend"`
}

func (r ClassificationResult) Attributes() Attributes {
	return Attributes{
		Weather:    r.Weather.Value,
		TimeOfDay:  r.TimeOfDay.Value,
		RoadType:   r.RoadType.Value,
		Lanes:      r.Lanes.Value,
		LaneCount:  r.LaneCount,
		Confidence: r.Confidence,
		Classifier: r.Backend,
	}
}
