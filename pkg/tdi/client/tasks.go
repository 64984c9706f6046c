package client

import (
	"encoding/json"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type TaskState string

const (
	TaskTodo    TaskState = "todo"
	TaskDone    TaskState = "done"
	TaskDeleted TaskState = "deleted"
)

// Task is a single to-do item. Tasks are not stored anywhere yet.
type Task struct {
	ID        uint32    `json:"id" yaml:"id"`
	Text      string    `json:"text" yaml:"text"`
	State     TaskState `json:"state" yaml:"state"`
	UpdatedAt UnixTime  `json:"updated_at" yaml:"updated_at"`
}

func NewTask(id uint32, text string) Task {
	return Task{ID: id, Text: text, State: TaskTodo, UpdatedAt: UnixTime(time.Now().UTC())}
}

// UnixTime encodes as whole seconds since the epoch.
type UnixTime time.Time

func (t UnixTime) Time() time.Time { return time.Time(t) }

func (t UnixTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(time.Time(t).Unix(), 10)), nil
}

func (t *UnixTime) UnmarshalJSON(data []byte) error {
	var secs int64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	*t = UnixTime(time.Unix(secs, 0).UTC())
	return nil
}

func (t UnixTime) MarshalYAML() (any, error) {
	return time.Time(t).Unix(), nil
}

func (t *UnixTime) UnmarshalYAML(node *yaml.Node) error {
	var secs int64
	if err := node.Decode(&secs); err != nil {
		return err
	}
	*t = UnixTime(time.Unix(secs, 0).UTC())
	return nil
}
