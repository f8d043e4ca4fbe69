package extension

import (
	"encoding/json"
	"fmt"
	"time"
)

// Response is one extension's answer to an assistant query.
type Response struct {
	// ExtensionID is stamped by the manager; extensions may leave it empty.
	ExtensionID string         `json:"extension_id,omitempty"`
	Text        string         `json:"text,omitempty"`
	Actions     []Action       `json:"-"`
	Priority    int            `json:"priority"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON encodes actions in their tagged form.
func (r Response) MarshalJSON() ([]byte, error) {
	type alias Response
	actions, err := MarshalActions(r.Actions)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		alias
		Actions json.RawMessage `json:"actions,omitempty"`
	}{alias: alias(r), Actions: actions})
}

// ActionKind tags an Action variant.
type ActionKind string

const (
	KindLaunchApp      ActionKind = "launch_app"
	KindOpenURL        ActionKind = "open_url"
	KindShowMessage    ActionKind = "show_message"
	KindCreateReminder ActionKind = "create_reminder"
	KindSendMessage    ActionKind = "send_message"
	KindPlaceCall      ActionKind = "place_call"
	KindOpenSettings   ActionKind = "open_settings"
	KindCustomIntent   ActionKind = "custom_intent"
)

// Action is an effect an extension asks the host to perform.
// The set of variants is closed: only the types in this file implement it.
// The engine never executes actions.
type Action interface {
	Kind() ActionKind
	isAction()
}

type LaunchApp struct {
	AppID string `json:"app_id"`
}

type OpenURL struct {
	URL string `json:"url"`
}

// ShowMessage is a transient message (a toast on most hosts).
type ShowMessage struct {
	Message string `json:"message"`
}

type CreateReminder struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

type SendMessage struct {
	Contact string `json:"contact"`
	Message string `json:"message"`
}

type PlaceCall struct {
	PhoneNumber string `json:"phone_number"`
}

// OpenSettings opens the host settings, optionally at a sub-target.
type OpenSettings struct {
	Target string `json:"target,omitempty"`
}

type CustomIntent struct {
	Name string            `json:"name"`
	Data map[string]string `json:"data,omitempty"`
}

func (LaunchApp) Kind() ActionKind      { return KindLaunchApp }
func (OpenURL) Kind() ActionKind        { return KindOpenURL }
func (ShowMessage) Kind() ActionKind    { return KindShowMessage }
func (CreateReminder) Kind() ActionKind { return KindCreateReminder }
func (SendMessage) Kind() ActionKind    { return KindSendMessage }
func (PlaceCall) Kind() ActionKind      { return KindPlaceCall }
func (OpenSettings) Kind() ActionKind   { return KindOpenSettings }
func (CustomIntent) Kind() ActionKind   { return KindCustomIntent }

func (LaunchApp) isAction()      {}
func (OpenURL) isAction()        {}
func (ShowMessage) isAction()    {}
func (CreateReminder) isAction() {}
func (SendMessage) isAction()    {}
func (PlaceCall) isAction()      {}
func (OpenSettings) isAction()   {}
func (CustomIntent) isAction()   {}

type taggedAction struct {
	Type ActionKind      `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalAction encodes a single action as {"type": kind, "data": {...}}.
func MarshalAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil action")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taggedAction{Type: a.Kind(), Data: data})
}

// MarshalActions encodes a list of actions; an empty list encodes as null.
func MarshalActions(actions []Action) (json.RawMessage, error) {
	if len(actions) == 0 {
		return nil, nil
	}
	out := make([]json.RawMessage, 0, len(actions))
	for _, a := range actions {
		raw, err := MarshalAction(a)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

// UnmarshalAction decodes the tagged form produced by MarshalAction.
func UnmarshalAction(raw []byte) (Action, error) {
	var tagged taggedAction
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, err
	}
	var a Action
	switch tagged.Type {
	case KindLaunchApp:
		var v LaunchApp
		a, raw = &v, tagged.Data
	case KindOpenURL:
		var v OpenURL
		a, raw = &v, tagged.Data
	case KindShowMessage:
		var v ShowMessage
		a, raw = &v, tagged.Data
	case KindCreateReminder:
		var v CreateReminder
		a, raw = &v, tagged.Data
	case KindSendMessage:
		var v SendMessage
		a, raw = &v, tagged.Data
	case KindPlaceCall:
		var v PlaceCall
		a, raw = &v, tagged.Data
	case KindOpenSettings:
		var v OpenSettings
		a, raw = &v, tagged.Data
	case KindCustomIntent:
		var v CustomIntent
		a, raw = &v, tagged.Data
	default:
		return nil, fmt.Errorf("unknown action type %q", tagged.Type)
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, a); err != nil {
			return nil, fmt.Errorf("decode %s action: %w", tagged.Type, err)
		}
	}
	return deref(a), nil
}

// deref returns the value form of a decoded variant so callers can type
// switch on value types only.
func deref(a Action) Action {
	switch v := a.(type) {
	case *LaunchApp:
		return *v
	case *OpenURL:
		return *v
	case *ShowMessage:
		return *v
	case *CreateReminder:
		return *v
	case *SendMessage:
		return *v
	case *PlaceCall:
		return *v
	case *OpenSettings:
		return *v
	case *CustomIntent:
		return *v
	}
	return a
}
