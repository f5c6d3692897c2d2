// Package activity builds and publishes the upload activity-log event: an
// Avro-encoded message describing a finalized upload, published to Kafka
// for downstream consumers.
package activity

// Message matches the schemas/activity.avsc record it is Avro-encoded
// against.
type Message struct {
	ActivityType   string   `avro:"activity_type" json:"activity_type"`
	ActivityTime   string   `avro:"activity_time" json:"activity_time"`
	ItemID         string   `avro:"item_id" json:"item_id"`
	ItemType       string   `avro:"item_type" json:"item_type"`
	ItemName       string   `avro:"item_name" json:"item_name"`
	ItemParentPath string   `avro:"item_parent_path" json:"item_parent_path"`
	ContainerCode  string   `avro:"container_code" json:"container_code"`
	ContainerType  string   `avro:"container_type" json:"container_type"`
	Zone           int32    `avro:"zone" json:"zone"`
	User           string   `avro:"user" json:"user"`
	ImportedFrom   string   `avro:"imported_from" json:"imported_from"`
	Changes        []string `avro:"changes" json:"changes"`
}

// Source is the created catalog item an upload message describes.
type Source struct {
	ID            string
	Type          string
	Name          string
	ParentPath    string
	ContainerCode string
	ContainerType string
	Zone          int32
}

// UploadMessage builds the "upload" activity message for a newly finalized
// file item.
func UploadMessage(item Source, operator, activityTime string) Message {
	return Message{
		ActivityType:   "upload",
		ActivityTime:   activityTime,
		ItemID:         item.ID,
		ItemType:       item.Type,
		ItemName:       item.Name,
		ItemParentPath: item.ParentPath,
		ContainerCode:  item.ContainerCode,
		ContainerType:  item.ContainerType,
		Zone:           item.Zone,
		User:           operator,
		ImportedFrom:   "",
		Changes:        []string{},
	}
}
