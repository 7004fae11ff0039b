package types_test

import (
	"encoding/json"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/types"
)

func TestEventType(t *testing.T) {
	convey.Convey("Given live update event types", t, func() {
		convey.Convey("When checking known kinds", func() {
			known := []types.EventType{
				types.EventProjectUpdate,
				types.EventTaskUpdate,
				types.EventDocumentUpload,
				types.EventCollaboration,
				types.EventHeartbeat,
			}

			convey.Convey("Then every channel kind should be known", func() {
				for _, k := range known {
					convey.So(k.Known(), convey.ShouldBeTrue)
				}
			})
		})

		convey.Convey("When checking an unknown kind", func() {
			convey.So(types.EventType("presence-update").Known(), convey.ShouldBeFalse)
			convey.So(types.EventType("").Known(), convey.ShouldBeFalse)
		})

		convey.Convey("Then the wire names should match the channel protocol", func() {
			convey.So(string(types.EventProjectUpdate), convey.ShouldEqual, "project-update")
			convey.So(string(types.EventTaskUpdate), convey.ShouldEqual, "task-update")
			convey.So(string(types.EventDocumentUpload), convey.ShouldEqual, "document-upload")
			convey.So(string(types.EventCollaboration), convey.ShouldEqual, "collaboration-update")
			convey.So(string(types.EventHeartbeat), convey.ShouldEqual, "heartbeat")
		})
	})
}

func TestMessage(t *testing.T) {
	convey.Convey("Given a live update message", t, func() {
		convey.Convey("When decoding a task update frame", func() {
			raw := []byte(`{"type":"task-update","projectId":"p-1","payload":{"id":"t-9","completed":true}}`)

			var msg types.Message
			err := json.Unmarshal(raw, &msg)

			convey.Convey("Then the envelope should decode and keep the payload raw", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(msg.Type, convey.ShouldEqual, types.EventTaskUpdate)
				convey.So(msg.ProjectID, convey.ShouldEqual, "p-1")
				convey.So(string(msg.Payload), convey.ShouldContainSubstring, `"completed":true`)
			})
		})

		convey.Convey("When encoding a heartbeat", func() {
			raw, err := json.Marshal(types.Message{Type: types.EventHeartbeat})

			convey.Convey("Then empty fields should be omitted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(raw), convey.ShouldEqual, `{"type":"heartbeat"}`)
			})
		})
	})
}

func TestNotificationLevels(t *testing.T) {
	convey.Convey("Given notification levels", t, func() {
		convey.Convey("Then the levels should match the portal severities", func() {
			convey.So(string(types.LevelSuccess), convey.ShouldEqual, "success")
			convey.So(string(types.LevelInfo), convey.ShouldEqual, "info")
			convey.So(string(types.LevelWarning), convey.ShouldEqual, "warning")
			convey.So(string(types.LevelError), convey.ShouldEqual, "error")
		})
	})
}
