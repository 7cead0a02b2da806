package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jwzl/devtwin/common"
)

const (
	// TopicDesiredPatch is where the hub sends the desired patches:
	// $iothub/twin/PATCH/properties/desired/?$version=<version>
	TopicDesiredPatch = "$iothub/twin/PATCH/properties/desired/"
	// TopicTwinResponse is where the hub answers the twin requests:
	// $iothub/twin/res/<status>/?$rid=<rid>[&$version=<version>]
	TopicTwinResponse = "$iothub/twin/res/"

	// TopicReportedPatch and TopicTwinGet are the device requests.
	TopicReportedPatch = "$iothub/twin/PATCH/properties/reported/"
	TopicTwinGet       = "$iothub/twin/GET/"

	topicReportedPatch = TopicReportedPatch + "?$rid=%s"
	topicTwinGet       = TopicTwinGet + "?$rid=%s"
	topicDesiredPatch  = TopicDesiredPatch + "?$version=%d"
	topicTwinResponse  = TopicTwinResponse + "%d/?$rid=%s"
	topicEvents        = "devices/%s/messages/events/"

	// system properties of an event.
	propContentType     = "$.ct"
	propContentEncoding = "$.ce"
)

// SubTopics are subscribed on every connection.
var SubTopics = []string{
	TopicDesiredPatch + "#",
	TopicTwinResponse + "#",
}

// ReportedTopic return the topic of a reported patch request.
func ReportedTopic(rid string) string {
	return fmt.Sprintf(topicReportedPatch, rid)
}

// TwinGetTopic return the topic of a full twin request.
func TwinGetTopic(rid string) string {
	return fmt.Sprintf(topicTwinGet, rid)
}

// DesiredPatchTopic return the topic of a desired patch.
func DesiredPatchTopic(version int64) string {
	return fmt.Sprintf(topicDesiredPatch, version)
}

// ResponseTopic return the topic answering request rid, a zero
// version is left out.
func ResponseTopic(status int, rid string, version int64) string {
	topic := fmt.Sprintf(topicTwinResponse, status, url.QueryEscape(rid))
	if version != 0 {
		topic += "&$version=" + strconv.FormatInt(version, 10)
	}
	return topic
}

// EventsTopicPrefix return the prefix of the events of deviceID.
func EventsTopicPrefix(deviceID string) string {
	return fmt.Sprintf(topicEvents, url.PathEscape(deviceID))
}

// RequestID return the $rid of a request or response topic.
func RequestID(topic string) string {
	i := strings.Index(topic, "?")
	if i < 0 {
		return ""
	}
	values, err := url.ParseQuery(topic[i+1:])
	if err != nil {
		return ""
	}
	return values.Get("$rid")
}

// EventTopic return the device-to-cloud topic of event, the
// application properties are followed by the content type and encoding.
func EventTopic(deviceID string, event *common.EventMessage) string {
	bag := make([]string, 0, len(event.Properties)+2)
	for _, p := range event.Properties {
		bag = append(bag, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	if event.ContentType != "" {
		bag = append(bag, propContentType+"="+url.QueryEscape(event.ContentType))
	}
	if event.ContentEncoding != "" {
		bag = append(bag, propContentEncoding+"="+url.QueryEscape(event.ContentEncoding))
	}

	return EventsTopicPrefix(deviceID) + strings.Join(bag, "&")
}

// TwinResponse is a parsed twin response topic.
type TwinResponse struct {
	Status    int
	RequestID string
	Version   int64
}

// ParseResponseTopic parse $iothub/twin/res/<status>/?$rid=<rid>&$version=<v>
func ParseResponseTopic(topic string) (*TwinResponse, error) {
	if !strings.HasPrefix(topic, TopicTwinResponse) {
		return nil, errors.New("not a twin response topic")
	}

	rest := strings.TrimPrefix(topic, TopicTwinResponse)
	i := strings.Index(rest, "/")
	if i < 0 {
		return nil, fmt.Errorf("invalid twin response topic %s", topic)
	}

	status, err := strconv.Atoi(rest[:i])
	if err != nil {
		return nil, fmt.Errorf("invalid status in %s", topic)
	}

	values, err := url.ParseQuery(strings.TrimPrefix(rest[i+1:], "?"))
	if err != nil {
		return nil, fmt.Errorf("invalid query in %s: %v", topic, err)
	}

	resp := &TwinResponse{Status: status, RequestID: values.Get("$rid")}
	if v := values.Get("$version"); v != "" {
		resp.Version, _ = strconv.ParseInt(v, 10, 64)
	}
	return resp, nil
}

// IsDesiredPatch report whether topic carries a desired patch.
func IsDesiredPatch(topic string) bool {
	return strings.HasPrefix(topic, TopicDesiredPatch)
}
