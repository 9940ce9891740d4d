package scanner

import (
	"github.com/yairfalse/sweeper/types"
)

// Link stamps cross-resource relationships onto a freshly scanned
// inventory:
//
//   - resources created by a CloudFormation stack get an owning_stack
//     attribute, and the stack's ReferencedBy lists them, so individual
//     deletes fold into the stack delete
//   - VPCs get ReferencedBy entries for every resource attached to
//     them, so attachments order ahead of the VPC inside a tier
//
// Linking is in-place and idempotent over a single scan's output.
func Link(resources []types.Resource) {
	linkStackMembers(resources)
	linkVPCAttachments(resources)
}

// linkStackMembers matches stack member physical IDs against scanned
// native IDs within the same account.
func linkStackMembers(resources []types.Resource) {
	// account -> native ID -> indices (native IDs are unique per service,
	// not globally, so a physical ID can match more than one resource)
	byNativeID := make(map[string]map[string][]int)
	for i := range resources {
		account := resources[i].Account
		if byNativeID[account] == nil {
			byNativeID[account] = make(map[string][]int)
		}
		byNativeID[account][resources[i].NativeID] = append(byNativeID[account][resources[i].NativeID], i)
	}

	for i := range resources {
		stack := &resources[i]
		if stack.Service != "cloudformation" {
			continue
		}

		for _, memberID := range memberIDs(stack) {
			for _, idx := range byNativeID[stack.Account][memberID] {
				member := &resources[idx]
				if member.ID == stack.ID {
					continue
				}
				if member.Attributes == nil {
					member.Attributes = map[string]any{}
				}
				member.Attributes["owning_stack"] = stack.ID
				stack.ReferencedBy = appendUnique(stack.ReferencedBy, member.ID)
			}
		}
	}
}

// linkVPCAttachments records which resources hang off each VPC.
func linkVPCAttachments(resources []types.Resource) {
	// (account, region, vpc native ID) -> inventory index
	type vpcKey struct {
		account string
		region  string
		vpcID   string
	}
	vpcs := make(map[vpcKey]int)
	for i := range resources {
		if resources[i].Service == "ec2" && resources[i].Type == "vpc" {
			vpcs[vpcKey{resources[i].Account, resources[i].Region, resources[i].NativeID}] = i
		}
	}

	for i := range resources {
		res := &resources[i]
		if res.Attributes == nil {
			continue
		}
		vpcID, ok := res.Attributes["vpc_id"].(string)
		if !ok || vpcID == "" {
			continue
		}

		if idx, found := vpcs[vpcKey{res.Account, res.Region, vpcID}]; found {
			vpc := &resources[idx]
			vpc.ReferencedBy = appendUnique(vpc.ReferencedBy, res.ID)
		}
	}
}

func memberIDs(stack *types.Resource) []string {
	if stack.Attributes == nil {
		return nil
	}
	switch members := stack.Attributes["member_ids"].(type) {
	case []string:
		return members
	case []any:
		// JSON round-trips turn []string into []any
		out := make([]string, 0, len(members))
		for _, m := range members {
			if s, ok := m.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
