package network

import "strings"

// CumulatePrefix is prepended to the name of cumulated attributes.
const CumulatePrefix = "cum_"

// Cumulate adds, for each variable, every node's value to all nodes
// downstream of it and stores the total as cum_<var>. A trailing "?" on the
// variable treats missing or non-numeric values as zero.
func (net *Network) Cumulate(vars []string) error {
	if len(net.nodes) == 0 {
		return nil
	}
	for _, v := range vars {
		name, lenient := strings.CutSuffix(strings.TrimSpace(v), "?")
		if name == "" {
			continue
		}

		own := make([]float64, len(net.nodes))
		for i, n := range net.nodes {
			val, err := Float(n, name)
			if err != nil {
				if !lenient {
					return err
				}
				val = 0
			}
			own[i] = val
		}

		total := make([]float64, len(net.nodes))
		for i, n := range net.nodes {
			total[i] += own[i]
			for out := n.Output; out != NoOutput; out = net.nodes[out].Output {
				total[out] += own[i]
			}
		}

		for i, n := range net.nodes {
			if err := n.SetAttr(CumulatePrefix+name, FloatAttr(total[i])); err != nil {
				return err
			}
		}
		net.logger.Debug("cumulated attribute", "attr", name, "outlet_total", total[0])
	}
	return nil
}
