package policy

import (
	"fmt"

	"github.com/yairfalse/sweeper/types"
)

// Classify assigns the preserve/delete verdict for one resource.
//
// The function is total and pure: identical (resource, policy) input
// always yields an identical classification, which is what makes a
// dry run a trustworthy prediction of a live run.
//
// Evaluation order:
//  1. explicit decom:preserve tag value is authoritative when readable
//  2. unreadable tag state defaults to preserve (fail-safe)
//  3. ordered policy rules, first match wins
//  4. anything left is a delete candidate
func Classify(res *types.Resource, pol *Policy) types.Classification {
	if res == nil {
		return types.Preserve("nil resource (fail-safe)")
	}

	if res.TagsUnreadable {
		return types.Preserve("tag state unreadable (fail-safe)")
	}

	if res.HasPreserveTag() {
		return types.Preserve(fmt.Sprintf("tagged %s=%s", types.PreserveTagKey, types.PreserveTagValue))
	}

	if pol != nil {
		for i := range pol.Rules {
			rule := &pol.Rules[i]
			if rule.Matches(res) {
				reason := rule.Reason
				if reason == "" {
					reason = fmt.Sprintf("matched rule %q", rule.Name)
				}
				return types.Preserve(reason)
			}
		}
	}

	return types.Delete("no preservation tag or rule matched")
}

// ClassifyAll classifies a whole inventory, keyed by resource ID.
func ClassifyAll(resources []types.Resource, pol *Policy) map[string]types.Classification {
	out := make(map[string]types.Classification, len(resources))
	for i := range resources {
		out[resources[i].ID] = Classify(&resources[i], pol)
	}
	return out
}
