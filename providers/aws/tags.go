package aws

import (
	"reflect"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/yairfalse/sweeper/types"
)

// newResource starts a regional resource skeleton; listers fill in the
// rest. The ID is the stable key every later stage joins on.
func (p *Provider) newResource(service, resType, nativeID string) types.Resource {
	return types.Resource{
		ID:         types.ResourceID(p.accountID, p.region, service, nativeID),
		NativeID:   nativeID,
		Type:       resType,
		Service:    service,
		Region:     p.region,
		Account:    p.accountID,
		ObservedAt: time.Now().UTC(),
	}
}

// newGlobalResource starts an account-wide resource skeleton.
func (p *Provider) newGlobalResource(service, resType, nativeID string) types.Resource {
	res := types.Resource{
		ID:         types.ResourceID(p.accountID, "global", service, nativeID),
		NativeID:   nativeID,
		Type:       resType,
		Service:    service,
		Region:     "global",
		Account:    p.accountID,
		Global:     true,
		ObservedAt: time.Now().UTC(),
	}
	return res
}

// convertTags converts ANY AWS tag shape to a plain map using
// reflection - every service invents its own Tag struct and this keeps
// the per-service converters out of the listers.
func convertTags(tags interface{}) map[string]string {
	result := map[string]string{}

	if tags == nil {
		return result
	}

	v := reflect.ValueOf(tags)

	switch v.Kind() {
	case reflect.Slice:
		// Slice of Tag structs (most AWS services)
		for i := 0; i < v.Len(); i++ {
			tag := v.Index(i)
			key, value := extractTagKeyValue(tag.Interface())
			if key != "" {
				result[key] = value
			}
		}

	case reflect.Map:
		// map[string]string or map[string]*string (Lambda, EKS, SQS)
		for _, mapKey := range v.MapKeys() {
			mapValue := v.MapIndex(mapKey)
			key := mapKey.String()
			if key != "" {
				result[key] = extractStringValue(mapValue.Interface())
			}
		}
	}

	return result
}

// extractTagKeyValue extracts Key and Value fields from any AWS tag struct
func extractTagKeyValue(tag interface{}) (string, string) {
	v := reflect.ValueOf(tag)

	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	var key, value string

	if keyField := v.FieldByName("Key"); keyField.IsValid() {
		key = extractStringValue(keyField.Interface())
	} else if keyField := v.FieldByName("TagKey"); keyField.IsValid() {
		// KMS names its fields TagKey/TagValue
		key = extractStringValue(keyField.Interface())
	}

	if valueField := v.FieldByName("Value"); valueField.IsValid() {
		value = extractStringValue(valueField.Interface())
	} else if valueField := v.FieldByName("TagValue"); valueField.IsValid() {
		value = extractStringValue(valueField.Interface())
	}

	return key, value
}

// extractStringValue handles *string and string types
func extractStringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case *string:
		return aws.ToString(val)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.String {
			return rv.String()
		}
		return ""
	}
}

// safeTimeValue safely converts *time.Time to time.Time
func safeTimeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// nameFromTags picks the conventional Name tag if present.
func nameFromTags(tags map[string]string) string {
	if name, ok := tags["Name"]; ok {
		return name
	}
	return ""
}
