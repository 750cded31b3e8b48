package transform

import (
	"context"
	"fmt"
	"time"
)

const bookingDateLayout = "2006-01-02"

// BookingV2 maps canonical reservation payloads to the v2 wire shape used
// by booking partners, and back. It also validates stay dates up front so
// obviously broken reservations never leave the gateway.
type BookingV2 struct{}

func (BookingV2) Name() string { return "booking_v2" }

// Validate rejects reservations whose checkout does not fall strictly
// after check-in, or whose dates don't parse.
func (t BookingV2) Validate(_ context.Context, in Payload) error {
	checkIn, err := bookingDate(in, "check_in")
	if err != nil {
		return NewValidationError(t.Name(), err.Error())
	}
	checkOut, err := bookingDate(in, "check_out")
	if err != nil {
		return NewValidationError(t.Name(), err.Error())
	}
	if !checkOut.After(checkIn) {
		return NewValidationError(t.Name(), "check_out must be after check_in")
	}
	return nil
}

// Forward produces the partner v2 request shape.
func (t BookingV2) Forward(_ context.Context, in Payload) (Payload, error) {
	guest, _ := in["guest_name"].(string)
	if guest == "" {
		return nil, fmt.Errorf("guest_name is required")
	}

	out := Payload{
		"guest": map[string]any{"name": guest},
		"stay": map[string]any{
			"from": in["check_in"],
			"to":   in["check_out"],
		},
	}
	if room, ok := in["room_type"].(string); ok && room != "" {
		out["room"] = map[string]any{"type": room}
	}
	return out, nil
}

// Reverse maps a partner v2 response back to the canonical shape.
func (t BookingV2) Reverse(_ context.Context, in Payload) (Payload, error) {
	out := Payload{}
	if id, ok := in["reservation_id"]; ok {
		out["booking_id"] = id
	}
	if status, ok := in["state"].(string); ok {
		out["status"] = status
	}
	if stay, ok := in["stay"].(map[string]any); ok {
		out["check_in"] = stay["from"]
		out["check_out"] = stay["to"]
	}
	return out, nil
}

func bookingDate(in Payload, field string) (time.Time, error) {
	raw, ok := in[field].(string)
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := time.Parse(bookingDateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a %s date", field, bookingDateLayout)
	}
	return t, nil
}
