// Package planner turns delete verdicts into an ordered, executable
// plan: coarse dependency tiers first, then a topological sort inside
// each tier, with stack-owned resources folded into their stack.
package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yairfalse/sweeper/types"
)

// Deletion tiers. Consumers go before the stores they read, stores go
// before the network underneath them, and CloudFormation stacks go
// last so stack deletes see their members already gone or folded.
const (
	TierWorkloads = iota + 1 // serverless and compute consumers
	TierDataStores
	TierNetwork // network, DNS, observability, everything else
	TierStacks

	tierCount = TierStacks
)

// Skip records a delete candidate the plan intentionally leaves alone.
type Skip struct {
	Resource types.Resource
	Detail   string
}

// Quarantine records a candidate that cannot be safely ordered.
type Quarantine struct {
	Resource types.Resource
	Detail   string
}

// Plan is an ordered deletion program. Tiers execute strictly in
// sequence; entries within a tier are already dependency-ordered.
type Plan struct {
	Tiers       [][]types.Resource
	Skipped     []Skip
	Quarantined []Quarantine
}

// Total returns the number of resources the plan will delete.
func (p *Plan) Total() int {
	total := 0
	for _, tier := range p.Tiers {
		total += len(tier)
	}
	return total
}

// Build assembles the deletion plan from an inventory and its verdicts.
// Only delete verdicts enter the plan; preserved resources are not the
// planner's business. The output is deterministic for a given input.
func Build(resources []types.Resource, verdicts map[string]types.Classification) *Plan {
	plan := &Plan{Tiers: make([][]types.Resource, tierCount)}

	var candidates []types.Resource
	for _, res := range resources {
		verdict, ok := verdicts[res.ID]
		if !ok || verdict.Verdict != types.VerdictDelete {
			continue
		}

		// A resource owned by a stack that is itself going away rides
		// along with the stack delete: deleting it individually would
		// race the stack teardown. Members of a surviving stack plan
		// normally.
		if owner := res.OwningStack(); owner != "" {
			if v, ok := verdicts[owner]; ok && v.Verdict == types.VerdictDelete {
				plan.Skipped = append(plan.Skipped, Skip{
					Resource: res,
					Detail:   fmt.Sprintf("owned by stack %s", owner),
				})
				continue
			}
		}

		candidates = append(candidates, res)
	}

	sort.Slice(plan.Skipped, func(i, j int) bool {
		return plan.Skipped[i].Resource.ID < plan.Skipped[j].Resource.ID
	})

	byTier := make(map[int][]types.Resource)
	for _, res := range candidates {
		tier := tierOf(&res)
		byTier[tier] = append(byTier[tier], res)
	}

	for tier := TierWorkloads; tier <= TierStacks; tier++ {
		ordered, cycles := orderTier(byTier[tier])
		plan.Tiers[tier-1] = ordered
		for _, res := range cycles {
			plan.Quarantined = append(plan.Quarantined, Quarantine{
				Resource: res,
				Detail:   "dependency cycle",
			})
		}
	}

	return plan
}

// tierOf assigns a resource to its deletion tier.
func tierOf(res *types.Resource) int {
	switch res.Service {
	case "lambda", "sqs", "autoscaling", "ecs", "eks":
		return TierWorkloads
	case "ec2":
		if res.Type == "instance" {
			return TierWorkloads
		}
		return TierNetwork
	case "rds", "dynamodb", "redshift", "memorydb", "s3", "ecr":
		return TierDataStores
	case "cloudformation":
		return TierStacks
	default:
		// elbv2, route53, logs, cloudtrail, kms, and anything new
		return TierNetwork
	}
}

// deleteRank orders independent resources within a tier. It only
// separates CloudFormation stacks: application stacks go before
// StackSet instances, and Control Tower / landing-zone stacks go last
// so the governance scaffolding outlives everything it governs.
func deleteRank(res *types.Resource) int {
	if res.Service != "cloudformation" {
		return 0
	}
	name := strings.ToLower(res.Name)
	if name == "" {
		name = strings.ToLower(res.NativeID)
	}
	switch {
	case strings.Contains(name, "controltower") || strings.Contains(name, "landing-zone") || strings.Contains(name, "landingzone"):
		return 2
	case strings.HasPrefix(name, "stackset-"):
		return 1
	default:
		return 0
	}
}

// orderTier topologically sorts one tier so that everything referencing
// a resource deletes before the resource itself. Kahn's algorithm with
// a rank-then-ID-sorted ready set keeps the order deterministic. Nodes
// left over sit on a cycle and are returned for quarantine.
func orderTier(tier []types.Resource) (ordered, cycles []types.Resource) {
	if len(tier) == 0 {
		return nil, nil
	}

	byID := make(map[string]int, len(tier))
	for i, res := range tier {
		byID[res.ID] = i
	}

	// res.ReferencedBy lists dependents; each dependent present in the
	// tier must come out before res does.
	indegree := make([]int, len(tier))
	dependents := make(map[int][]int) // dependent index -> resources it unblocks
	for i, res := range tier {
		for _, refID := range res.ReferencedBy {
			if j, ok := byID[refID]; ok && j != i {
				indegree[i]++
				dependents[j] = append(dependents[j], i)
			}
		}
	}

	var ready []int
	for i := range tier {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	done := make([]bool, len(tier))
	for len(ready) > 0 {
		sort.Slice(ready, func(a, b int) bool {
			ra, rb := &tier[ready[a]], &tier[ready[b]]
			if pa, pb := deleteRank(ra), deleteRank(rb); pa != pb {
				return pa < pb
			}
			return ra.ID < rb.ID
		})
		next := ready[0]
		ready = ready[1:]

		ordered = append(ordered, tier[next])
		done[next] = true

		for _, unblocked := range dependents[next] {
			indegree[unblocked]--
			if indegree[unblocked] == 0 {
				ready = append(ready, unblocked)
			}
		}
	}

	for i := range tier {
		if !done[i] {
			cycles = append(cycles, tier[i])
		}
	}
	sort.Slice(cycles, func(a, b int) bool { return cycles[a].ID < cycles[b].ID })

	return ordered, cycles
}
