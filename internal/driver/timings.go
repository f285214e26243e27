package driver

import (
	"encoding/json"

	"gotolower/internal/diag"
	"gotolower/internal/observ"
	"gotolower/internal/source"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	Path    string               `json:"path,omitempty"`
	Cached  bool                 `json:"cached,omitempty"`
	TotalMS float64              `json:"total_ms"`
	Stages  []observ.StageReport `json:"stages"`
}

// appendTimingDiagnostic records a unit's stage timings as an OBS6001 note
// whose text is the JSON payload. It bypasses the bag limit.
func appendTimingDiagnostic(bag *diag.Bag, payload timingPayload) {
	if bag == nil {
		return
	}
	if payload.Kind == "" {
		payload.Kind = "unit"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	entry := diag.Newf(diag.SevInfo, diag.ObsTimings, source.Span{},
		"timings (%s): total %.2f ms%s", payload.Kind, payload.TotalMS, pathSuffix(payload.Path)).
		WithNote(source.Span{}, string(data))

	if bag.Add(entry) {
		return
	}
	overflow := diag.NewBag(1)
	overflow.Add(entry)
	bag.Merge(overflow)
}

func pathSuffix(p string) string {
	if p == "" {
		return ""
	}
	return ", " + p
}
