package aws

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
)

func TestConvertTagsSlice(t *testing.T) {
	tags := convertTags([]ec2types.Tag{
		{Key: aws.String("Name"), Value: aws.String("web-1")},
		{Key: aws.String("decom:preserve"), Value: aws.String("true")},
	})

	if tags["Name"] != "web-1" {
		t.Errorf("Name = %q, want web-1", tags["Name"])
	}
	if tags["decom:preserve"] != "true" {
		t.Errorf("decom:preserve = %q, want true", tags["decom:preserve"])
	}
}

func TestConvertTagsMap(t *testing.T) {
	tags := convertTags(map[string]string{"team": "platform"})
	if tags["team"] != "platform" {
		t.Errorf("team = %q, want platform", tags["team"])
	}

	ptrTags := convertTags(map[string]*string{"env": aws.String("dev")})
	if ptrTags["env"] != "dev" {
		t.Errorf("env = %q, want dev", ptrTags["env"])
	}
}

func TestConvertTagsKMSFieldNames(t *testing.T) {
	tags := convertTags([]kmstypes.Tag{
		{TagKey: aws.String("owner"), TagValue: aws.String("data")},
	})
	if tags["owner"] != "data" {
		t.Errorf("owner = %q, want data", tags["owner"])
	}
}

func TestConvertTagsNil(t *testing.T) {
	tags := convertTags(nil)
	if len(tags) != 0 {
		t.Errorf("expected empty map, got %v", tags)
	}
}

func TestQueueNameFromURL(t *testing.T) {
	tests := []struct {
		name     string
		queueURL string
		want     string
	}{
		{
			name:     "standard queue URL",
			queueURL: "https://sqs.eu-west-1.amazonaws.com/111122223333/ingest-queue",
			want:     "ingest-queue",
		},
		{
			name:     "FIFO queue URL",
			queueURL: "https://sqs.eu-west-1.amazonaws.com/111122223333/orders.fifo",
			want:     "orders.fifo",
		},
		{
			name:     "no slash",
			queueURL: "bare-name",
			want:     "bare-name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := queueNameFromURL(tt.queueURL); got != tt.want {
				t.Errorf("queueNameFromURL() = %v, want %v", got, tt.want)
			}
		})
	}
}
