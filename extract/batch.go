package extract

import "github.com/rasnes/dhis2-duckdb-framework/utils"

// Limits caps the size of each dimension in a single analytics request.
// A value <= 0 leaves the dimension unsplit.
type Limits struct {
	MaxDX int
	MaxPE int
	MaxOU int
}

// SplitRequest returns the cartesian product of the chunked dimensions, so
// the union of the returned requests covers exactly the original one.
// Org unit levels are not split and are carried by every request.
func SplitRequest(req AnalyticsRequest, limits Limits) []AnalyticsRequest {
	dxChunks := utils.Chunk(req.DataElements, limits.MaxDX)
	peChunks := utils.Chunk(req.Periods, limits.MaxPE)
	ouChunks := utils.Chunk(req.OrgUnits, limits.MaxOU)
	if len(ouChunks) == 0 {
		ouChunks = [][]string{nil}
	}

	requests := make([]AnalyticsRequest, 0, len(dxChunks)*len(peChunks)*len(ouChunks))
	for _, dx := range dxChunks {
		for _, pe := range peChunks {
			for _, ou := range ouChunks {
				requests = append(requests, AnalyticsRequest{
					DataElements:  dx,
					Periods:       pe,
					OrgUnits:      ou,
					OrgUnitLevels: req.OrgUnitLevels,
				})
			}
		}
	}
	return requests
}
