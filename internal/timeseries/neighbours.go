package timeseries

import (
	"fmt"
	"sort"

	"github.com/nadi-hydro/nadi/internal/network"
)

type neighbour struct {
	index    int
	distance int
	upstream bool
}

// neighbours returns every node connected to start ordered by the number of
// edges between them. At equal distance downstream nodes come first.
func neighbours(net *network.Network, start int) []neighbour {
	dist := map[int]int{start: 0}
	var found []neighbour

	for d, curr := 1, net.NodeAt(start); curr.HasOutput(); d++ {
		found = append(found, neighbour{index: curr.Output, distance: d})
		dist[curr.Output] = d
		curr = net.NodeAt(curr.Output)
	}

	queue := []int{start}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, in := range net.NodeAt(curr).Inputs {
			if _, seen := dist[in]; seen {
				continue
			}
			dist[in] = dist[curr] + 1
			found = append(found, neighbour{index: in, distance: dist[in], upstream: true})
			queue = append(queue, in)
		}
	}

	sort.SliceStable(found, func(a, b int) bool {
		if found[a].distance != found[b].distance {
			return found[a].distance < found[b].distance
		}
		return !found[a].upstream && found[b].upstream
	})
	return found
}

// FillFromNeighbours fills the missing values of every node series from the
// nearest connected nodes that have data, scaling by the ratio of attribute
// prop between the two nodes (no scaling when prop is empty). Donor values
// are always the observed values, never ones filled by this call. It returns
// the number of values filled per node name.
func FillFromNeighbours(net *network.Network, series map[string]*Series, prop string) (map[string]int, error) {
	observed := make(map[string]*Series, len(series))
	for name, s := range series {
		observed[name] = s.Clone()
	}

	filled := make(map[string]int)
	for _, node := range net.Nodes() {
		s, ok := series[node.Name]
		if !ok || s.Missing() == 0 {
			continue
		}

		for _, nb := range neighbours(net, node.Index) {
			donor := net.NodeAt(nb.index)
			src, ok := observed[donor.Name]
			if !ok {
				continue
			}
			ratio, err := propRatio(node, donor, prop)
			if err != nil {
				return filled, err
			}
			if n := s.CastNAFrom(src, ratio); n > 0 {
				filled[node.Name] += n
			}
			if s.Missing() == 0 {
				break
			}
		}
	}
	return filled, nil
}

func propRatio(node, donor *network.Node, prop string) (float64, error) {
	if prop == "" {
		return 1, nil
	}
	num, err := network.Float(node, prop)
	if err != nil {
		return 0, err
	}
	den, err := network.Float(donor, prop)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, fmt.Errorf("node %s: %s is zero, cannot scale %s from it", donor.Name, prop, node.Name)
	}
	return num / den, nil
}
