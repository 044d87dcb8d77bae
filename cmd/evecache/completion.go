package main

import (
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// completion describes the command line for shell completion. Install with
// COMP_INSTALL=1 evecache.
func completion() *complete.Command {
	cacheFiles := predict.Files("*.cache")
	jsonFiles := predict.Files("*.json")
	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"v":           predict.Nothing,
			"db":          predict.Files("*"),
			"descriptors": jsonFiles,
		},
		Sub: map[string]*complete.Command{
			"dump": {
				Flags: map[string]complete.Predictor{
					"q":      predict.Something,
					"json":   predict.Nothing,
					"inline": predict.Nothing,
					"stats":  predict.Nothing,
					"tree":   predict.Nothing,
				},
				Args: cacheFiles,
			},
			"rows": {
				Flags: map[string]complete.Predictor{
					"md":         predict.Nothing,
					"style":      predict.Set{"auto", "dark", "light", "notty"},
					"width":      predict.Something,
					"descriptor": predict.Something,
				},
				Args: cacheFiles,
			},
			"descriptors": {
				Flags: map[string]complete.Predictor{
					"builtin": predict.Nothing,
				},
				Sub: map[string]*complete.Command{
					"list":   {},
					"export": {},
					"import": {Args: jsonFiles},
					"delete": {Args: predict.Something},
				},
			},
			"scan": {
				Flags: map[string]complete.Predictor{
					"folder":  predict.Something,
					"method":  predict.Something,
					"workers": predict.Something,
					"changed": predict.Nothing,
					"orders":  predict.Nothing,
					"no-mmap": predict.Nothing,
				},
				Args: predict.Dirs("*"),
			},
			"help":     {},
			"flags":    {},
			"commands": {},
		},
	}
}
