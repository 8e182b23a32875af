package parsetree

import (
	"sort"

	"goseldon/domain/dataset"
)

// Statistic names recognised in constraint strings, by regime.
//
// Classification rates (PR, NR, FPR, TPR, FNR, TNR, ACC) are positive rate,
// negative rate, false/true positive rate, false/true negative rate and
// accuracy. J_pi_new_* are off-policy estimates of a new policy's return.
var measureFunctions = map[dataset.Regime]map[dataset.SubRegime][]string{
	dataset.RegimeSupervised: {
		dataset.SubRegimeClassification: {"PR", "NR", "FPR", "TPR", "FNR", "TNR", "ACC"},
		dataset.SubRegimeRegression:     {"Mean_Error", "Mean_Squared_Error"},
	},
	dataset.RegimeRL: {
		dataset.SubRegimeAll: {"J_pi_new_IS", "J_pi_new_PDIS", "J_pi_new_WIS"},
	},
}

// customBaseNodes are statistics with their own sampling and bound logic
var customBaseNodes = map[string]NodeKind{
	"MED_MF":  MEDBaseNode,
	"CVaRSQE": CVaRBaseNode,
}

// knownStatistics returns the statistic names accepted for a regime. An empty
// regime accepts every registered name.
func knownStatistics(regime dataset.Regime, sub dataset.SubRegime, extra []string) map[string]NodeKind {
	out := make(map[string]NodeKind)
	for r, subs := range measureFunctions {
		if regime != "" && r != regime {
			continue
		}
		for s, names := range subs {
			if sub != "" && regime != dataset.RegimeRL && s != sub {
				continue
			}
			for _, name := range names {
				out[name] = BaseNode
			}
		}
	}
	if regime == "" || regime == dataset.RegimeSupervised {
		for name, kind := range customBaseNodes {
			out[name] = kind
		}
	}
	for _, name := range extra {
		if _, ok := out[name]; !ok {
			out[name] = BaseNode
		}
	}
	return out
}

// MeasureFunctions lists the statistics known for a regime, sorted
func MeasureFunctions(regime dataset.Regime, sub dataset.SubRegime) []string {
	known := knownStatistics(regime, sub, nil)
	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
