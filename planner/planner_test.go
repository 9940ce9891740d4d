package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/sweeper/types"
)

func deleteAll(resources []types.Resource) map[string]types.Classification {
	verdicts := make(map[string]types.Classification)
	for _, res := range resources {
		verdicts[res.ID] = types.Delete("test")
	}
	return verdicts
}

func res(service, resType, nativeID string) types.Resource {
	return types.Resource{
		ID:       types.ResourceID("111122223333", "eu-west-1", service, nativeID),
		NativeID: nativeID,
		Service:  service,
		Type:     resType,
		Region:   "eu-west-1",
		Account:  "111122223333",
	}
}

func TestBuildAssignsTiers(t *testing.T) {
	inventory := []types.Resource{
		res("lambda", "function", "fn"),
		res("ec2", "instance", "i-1"),
		res("rds", "db-instance", "db"),
		res("s3", "bucket", "bkt"),
		res("ec2", "vpc", "vpc-1"),
		res("elbv2", "load-balancer", "lb"),
		res("cloudformation", "stack", "stack-1"),
	}

	plan := Build(inventory, deleteAll(inventory))

	names := func(tier int) []string {
		var out []string
		for _, r := range plan.Tiers[tier-1] {
			out = append(out, r.NativeID)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"fn", "i-1"}, names(TierWorkloads))
	assert.ElementsMatch(t, []string{"db", "bkt"}, names(TierDataStores))
	assert.ElementsMatch(t, []string{"vpc-1", "lb"}, names(TierNetwork))
	assert.ElementsMatch(t, []string{"stack-1"}, names(TierStacks))
	assert.Equal(t, 7, plan.Total())
}

func TestBuildExcludesPreservedResources(t *testing.T) {
	keep := res("ec2", "instance", "i-keep")
	drop := res("ec2", "instance", "i-drop")

	verdicts := map[string]types.Classification{
		keep.ID: types.Preserve("tagged"),
		drop.ID: types.Delete("unmatched"),
	}

	plan := Build([]types.Resource{keep, drop}, verdicts)

	require.Len(t, plan.Tiers[TierWorkloads-1], 1)
	assert.Equal(t, "i-drop", plan.Tiers[TierWorkloads-1][0].NativeID)
}

func TestBuildFoldsStackOwnedResources(t *testing.T) {
	stack := res("cloudformation", "stack", "app")
	owned := res("ec2", "instance", "i-owned")
	owned.Attributes = map[string]any{"owning_stack": stack.ID}

	plan := Build([]types.Resource{stack, owned}, deleteAll([]types.Resource{stack, owned}))

	assert.Equal(t, 1, plan.Total())
	require.Len(t, plan.Skipped, 1)
	assert.Equal(t, owned.ID, plan.Skipped[0].Resource.ID)
	assert.Contains(t, plan.Skipped[0].Detail, stack.ID)
}

func TestBuildPlansMembersOfPreservedStacks(t *testing.T) {
	stack := res("cloudformation", "stack", "keep-stack")
	member := res("ec2", "instance", "i-member")
	member.Attributes = map[string]any{"owning_stack": stack.ID}

	verdicts := map[string]types.Classification{
		stack.ID:  types.Preserve("tagged"),
		member.ID: types.Delete("unmatched"),
	}

	plan := Build([]types.Resource{stack, member}, verdicts)

	assert.Empty(t, plan.Skipped, "the surviving stack will never delete its member")
	require.Len(t, plan.Tiers[TierWorkloads-1], 1)
	assert.Equal(t, "i-member", plan.Tiers[TierWorkloads-1][0].NativeID)
}

func TestBuildOrdersDependentsFirstWithinTier(t *testing.T) {
	vpc := res("ec2", "vpc", "vpc-1")
	nat := res("ec2", "nat-gateway", "nat-1")
	igw := res("ec2", "internet-gateway", "igw-1")
	vpc.ReferencedBy = []string{nat.ID, igw.ID}

	plan := Build([]types.Resource{vpc, nat, igw}, deleteAll([]types.Resource{vpc, nat, igw}))

	tier := plan.Tiers[TierNetwork-1]
	require.Len(t, tier, 3)
	assert.Equal(t, "vpc-1", tier[2].NativeID, "VPC must come after its attachments")
}

func TestBuildQuarantinesCycles(t *testing.T) {
	a := res("ec2", "security-group", "sg-a")
	b := res("ec2", "security-group", "sg-b")
	a.ReferencedBy = []string{b.ID}
	b.ReferencedBy = []string{a.ID}
	lone := res("ec2", "security-group", "sg-c")

	plan := Build([]types.Resource{a, b, lone}, deleteAll([]types.Resource{a, b, lone}))

	require.Len(t, plan.Quarantined, 2)
	assert.Equal(t, "dependency cycle", plan.Quarantined[0].Detail)

	tier := plan.Tiers[TierNetwork-1]
	require.Len(t, tier, 1, "resources off the cycle still plan normally")
	assert.Equal(t, "sg-c", tier[0].NativeID)
}

func TestBuildIgnoresCrossTierReferences(t *testing.T) {
	// An instance referencing its VPC lives in an earlier tier; the
	// edge must not leak into the VPC's tier ordering.
	vpc := res("ec2", "vpc", "vpc-1")
	instance := res("ec2", "instance", "i-1")
	vpc.ReferencedBy = []string{instance.ID}

	plan := Build([]types.Resource{vpc, instance}, deleteAll([]types.Resource{vpc, instance}))

	assert.Len(t, plan.Tiers[TierWorkloads-1], 1)
	assert.Len(t, plan.Tiers[TierNetwork-1], 1)
	assert.Empty(t, plan.Quarantined)
}

func TestBuildOrdersGovernanceStacksLast(t *testing.T) {
	app := res("cloudformation", "stack", "billing-api")
	set := res("cloudformation", "stack", "StackSet-shared-vpc-1a2b")
	tower := res("cloudformation", "stack", "StackSet-AWSControlTowerBP-BASELINE")

	inventory := []types.Resource{tower, set, app}
	plan := Build(inventory, deleteAll(inventory))

	tier := plan.Tiers[TierStacks-1]
	require.Len(t, tier, 3)
	assert.Equal(t, "billing-api", tier[0].NativeID)
	assert.Equal(t, "StackSet-shared-vpc-1a2b", tier[1].NativeID)
	assert.Equal(t, "StackSet-AWSControlTowerBP-BASELINE", tier[2].NativeID)
}

func TestBuildIsDeterministic(t *testing.T) {
	inventory := []types.Resource{
		res("ec2", "security-group", "sg-c"),
		res("ec2", "security-group", "sg-a"),
		res("ec2", "security-group", "sg-b"),
	}

	first := Build(inventory, deleteAll(inventory))
	second := Build(inventory, deleteAll(inventory))

	assert.Equal(t, first.Tiers, second.Tiers)
	assert.Equal(t, "sg-a", first.Tiers[TierNetwork-1][0].NativeID)
}
