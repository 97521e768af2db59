package http

import (
	"encoding/json"
	"time"

	"github.com/gymstack/checkin-server/internal/core"
	"github.com/gymstack/checkin-server/internal/proto"
	"github.com/gymstack/checkin-server/internal/store"
)

// MemberResponse is the REST representation of a member.
type MemberResponse struct {
	ID               string `json:"id"`
	MembershipNumber string `json:"membership_number"`
	FullName         string `json:"full_name"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	Status           string `json:"status"`
	Notes            string `json:"notes"`
	CreatedAt        string `json:"created_at"`
}

// CheckInResponse is the REST representation of a check-in record.
type CheckInResponse struct {
	ID           string  `json:"id"`
	MemberID     string  `json:"member_id"`
	CheckInTime  string  `json:"check_in_time"`
	CheckOutTime *string `json:"check_out_time"`
	Location     string  `json:"location"`
	Notes        string  `json:"notes"`
}

func memberToResponse(m *store.Member) MemberResponse {
	return MemberResponse{
		ID:               m.ID,
		MembershipNumber: m.MembershipNumber,
		FullName:         m.FullName,
		Phone:            m.Phone,
		Address:          m.Address,
		Status:           string(m.Status),
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt.Format(time.RFC3339),
	}
}

func checkInToResponse(rec *store.CheckIn) CheckInResponse {
	resp := CheckInResponse{
		ID:          rec.ID,
		MemberID:    rec.MemberID,
		CheckInTime: rec.CheckInTime.Format(time.RFC3339),
		Location:    rec.Location,
		Notes:       rec.Notes,
	}
	if rec.CheckOutTime != nil {
		t := rec.CheckOutTime.Format(time.RFC3339)
		resp.CheckOutTime = &t
	}
	return resp
}

// inboundToCommands maps one inbound envelope to the commands it triggers, in
// dispatch order. Malformed payloads are reported in errs; unknown message
// types yield neither commands nor errors (forward-compatible clients are
// tolerated). A batch expands into its inner items; one malformed item does not
// stop the rest.
func inboundToCommands(inbound proto.Inbound) (cmds []*core.Command, errs []string, known bool) {
	switch inbound.Type {
	case proto.InboundTypeHeartbeat:
		return []*core.Command{{Kind: core.CommandHeartbeat}}, nil, true

	case proto.InboundTypeCheckIn:
		cmd, err := checkInCommand(inbound.Payload)
		if err != nil {
			return nil, []string{"Invalid JSON format"}, true
		}
		return []*core.Command{cmd}, nil, true

	case proto.InboundTypeCheckOut:
		cmd, err := checkOutCommand(inbound.Payload)
		if err != nil {
			return nil, []string{"Invalid JSON format"}, true
		}
		return []*core.Command{cmd}, nil, true

	case proto.InboundTypeBatch:
		var batch proto.BatchData
		if err := json.Unmarshal(inbound.Payload, &batch); err != nil {
			return nil, []string{"Invalid JSON format"}, true
		}
		// JSON objects carry no key order, so dispatch check-ins before
		// check-outs; each list keeps its own order.
		for _, raw := range batch[proto.InboundTypeCheckIn] {
			cmd, err := checkInCommand(raw)
			if err != nil {
				errs = append(errs, "Invalid JSON format")
				continue
			}
			cmds = append(cmds, cmd)
		}
		for _, raw := range batch[proto.InboundTypeCheckOut] {
			cmd, err := checkOutCommand(raw)
			if err != nil {
				errs = append(errs, "Invalid JSON format")
				continue
			}
			cmds = append(cmds, cmd)
		}
		return cmds, errs, true
	}

	return nil, nil, false
}

func checkInCommand(raw json.RawMessage) (*core.Command, error) {
	var data proto.CheckInData
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
	}
	return &core.Command{
		Kind:     core.CommandCheckIn,
		MemberID: data.MemberID,
		Location: data.Location,
		Notes:    data.Notes,
	}, nil
}

func checkOutCommand(raw json.RawMessage) (*core.Command, error) {
	var data proto.CheckOutData
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
	}
	return &core.Command{
		Kind:      core.CommandCheckOut,
		CheckInID: data.CheckInID,
		Notes:     data.Notes,
	}, nil
}

// outboundFromEvent maps a core event to its wire envelope.
func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventInitialStats:
		return proto.Outbound{Type: proto.OutboundTypeInitialStats, Payload: statsPayload(event.Stats)}
	case core.EventHeartbeatAck:
		return proto.Outbound{Type: proto.OutboundTypeHeartbeatAck, Timestamp: event.At.Format(time.RFC3339)}
	case core.EventCheckInSuccess:
		return proto.Outbound{Type: proto.OutboundTypeCheckInSuccess, Payload: checkInPayload(event.Record, event.Member)}
	case core.EventCheckInError:
		return proto.Outbound{Type: proto.OutboundTypeCheckInError, Payload: proto.ErrorPayload{Error: event.ErrMsg}}
	case core.EventCheckOutSuccess:
		return proto.Outbound{Type: proto.OutboundTypeCheckOutSuccess, Payload: checkInPayload(event.Record, event.Member)}
	case core.EventCheckOutError:
		return proto.Outbound{Type: proto.OutboundTypeCheckOutError, Payload: proto.ErrorPayload{Error: event.ErrMsg}}
	case core.EventMemberCheckedIn:
		return proto.Outbound{Type: proto.OutboundTypeMemberCheckedIn, Payload: checkInPayload(event.Record, event.Member)}
	case core.EventMemberCheckedOut:
		return proto.Outbound{Type: proto.OutboundTypeMemberCheckedOut, Payload: checkInPayload(event.Record, event.Member)}
	case core.EventStatsUpdate:
		return proto.Outbound{Type: proto.OutboundTypeStatsUpdate, Payload: statsPayload(event.Stats)}
	}
	return proto.Outbound{Type: proto.OutboundTypeError, Message: event.ErrMsg}
}

func statsPayload(stats *core.Stats) proto.StatsPayload {
	return proto.StatsPayload{
		CurrentlyIn:        stats.CurrentlyIn,
		TodayTotal:         stats.TodayTotal,
		AverageStayMinutes: stats.AverageStayMinutes,
	}
}

func checkInPayload(rec *store.CheckIn, member *store.Member) proto.CheckInPayload {
	payload := proto.CheckInPayload{
		ID:          rec.ID,
		Member:      proto.MemberPayload{ID: rec.MemberID},
		CheckInTime: rec.CheckInTime.Format(time.RFC3339),
		Location:    rec.Location,
		Notes:       rec.Notes,
		Status:      proto.StatusCheckedIn,
	}
	if member != nil {
		payload.Member.FullName = member.FullName
		payload.Member.MembershipNumber = member.MembershipNumber
	}
	if rec.CheckOutTime != nil {
		t := rec.CheckOutTime.Format(time.RFC3339)
		payload.CheckOutTime = &t
		payload.Status = proto.StatusCheckedOut
	}
	return payload
}
