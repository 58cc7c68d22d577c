package application

import (
	"slices"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/WangYihang/subprobe/pkg/domain/service"
	mapset "github.com/deckarep/golang-set/v2"
)

// Aggregate returns the union of sets; nil sets are ignored and no input is modified
func Aggregate(sets ...mapset.Set[entity.Hostname]) mapset.Set[entity.Hostname] {
	union := mapset.NewSet[entity.Hostname]()
	for _, set := range sets {
		if set == nil {
			continue
		}
		set.Each(func(host entity.Hostname) bool {
			union.Add(host)
			return false
		})
	}
	return union
}

// Worklist returns a sorted snapshot of set
func Worklist(set mapset.Set[entity.Hostname]) []entity.Hostname {
	if set == nil {
		return nil
	}
	hosts := set.ToSlice()
	slices.Sort(hosts)
	return hosts
}

// NormalizeAll normalizes raw candidates, returning the valid set and the
// number of candidates dropped
func NormalizeAll(raw []string, apex entity.ApexDomain, normalizer service.HostnameNormalizer) (mapset.Set[entity.Hostname], int) {
	set := mapset.NewSet[entity.Hostname]()
	dropped := 0
	for _, candidate := range raw {
		host, err := normalizer.Normalize(candidate, apex)
		if err != nil {
			dropped++
			continue
		}
		set.Add(host)
	}
	return set, dropped
}
