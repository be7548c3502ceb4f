package coax

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/coaxterm/pkg/domain"
)

// Command is a single coax command.
type Command struct {
	Code byte
	Data []byte
}

// Command codes.
const (
	CodePoll           byte = 0x01
	CodeReadExtendedID byte = 0x07
	CodeReadTerminalID byte = 0x09
	CodeReadFeatureID  byte = 0x0f
	CodePollAck        byte = 0x11
)

// PollAction is carried by a POLL to request a keyboard side effect.
type PollAction byte

const (
	PollActionNone PollAction = iota
	PollActionAlarm
	PollActionEnableClicker
	PollActionDisableClicker
)

func (a PollAction) String() string {
	switch a {
	case PollActionNone:
		return "NONE"
	case PollActionAlarm:
		return "ALARM"
	case PollActionEnableClicker:
		return "ENABLE_KEYBOARD_CLICKER"
	case PollActionDisableClicker:
		return "DISABLE_KEYBOARD_CLICKER"
	default:
		return fmt.Sprintf("PollAction(%d)", byte(a))
	}
}

// PollResponseKind classifies a POLL response.
type PollResponseKind byte

const (
	PollTTAR PollResponseKind = iota // nothing to report
	PollPowerOnReset
	PollKeystroke
)

func (k PollResponseKind) String() string {
	switch k {
	case PollPowerOnReset:
		return "POWER_ON_RESET_COMPLETE"
	case PollKeystroke:
		return "KEYSTROKE"
	case PollTTAR:
		return "TT/AR"
	default:
		return fmt.Sprintf("PollResponseKind(%d)", byte(k))
	}
}

// PollResponse is the decoded answer to a POLL.
type PollResponse struct {
	Kind     PollResponseKind
	ScanCode uint8
}

// NeedsAck reports whether the response must be acknowledged with POLL_ACK.
func (r PollResponse) NeedsAck() bool {
	return r.Kind != PollTTAR
}

// ParsePollResponse decodes POLL response data.
func ParsePollResponse(data []byte) (PollResponse, error) {
	if len(data) == 0 {
		return PollResponse{Kind: PollTTAR}, nil
	}
	kind := PollResponseKind(data[0])
	switch kind {
	case PollTTAR, PollPowerOnReset:
		return PollResponse{Kind: kind}, nil
	case PollKeystroke:
		if len(data) < 2 {
			return PollResponse{}, fmt.Errorf("%w: keystroke without scan code", ErrProtocolError)
		}
		return PollResponse{Kind: kind, ScanCode: data[1]}, nil
	default:
		return PollResponse{}, fmt.Errorf("%w: unknown poll response 0x%02x", ErrProtocolError, data[0])
	}
}

// Poll issues a POLL.
func Poll(ctx context.Context, link Link, addr Address, action PollAction) (PollResponse, error) {
	data, err := link.Execute(ctx, addr, Command{Code: CodePoll, Data: []byte{byte(action)}})
	if err != nil {
		return PollResponse{}, err
	}
	return ParsePollResponse(data)
}

// PollAck acknowledges the previous POLL response.
func PollAck(ctx context.Context, link Link, addr Address) error {
	_, err := link.Execute(ctx, addr, Command{Code: CodePollAck})
	return err
}

// ReadTerminalID reads and decodes the terminal id.
func ReadTerminalID(ctx context.Context, link Link, addr Address) (domain.TerminalID, error) {
	data, err := link.Execute(ctx, addr, Command{Code: CodeReadTerminalID})
	if err != nil {
		return domain.TerminalID{}, fmt.Errorf("READ_TERMINAL_ID: %w", err)
	}
	if len(data) != 1 {
		return domain.TerminalID{}, fmt.Errorf("READ_TERMINAL_ID: %w: expected 1 byte, got %d", ErrProtocolError, len(data))
	}
	return domain.ParseTerminalID(data[0])
}

// ReadExtendedID reads the extended id. Terminals without one do not answer, which
// is reported as an absent id rather than an error.
func ReadExtendedID(ctx context.Context, link Link, addr Address) (domain.ExtendedID, error) {
	data, err := link.Execute(ctx, addr, Command{Code: CodeReadExtendedID})
	if errors.Is(err, ErrReceiveTimeout) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("READ_EXTENDED_ID: %w", err)
	}
	if len(data) != 0 && len(data) != 4 {
		return "", fmt.Errorf("READ_EXTENDED_ID: %w: expected 4 bytes, got %d", ErrProtocolError, len(data))
	}
	return domain.ParseExtendedID(data), nil
}

// ReadFeatureID reads the feature id at a feature address. ok is false when no
// feature is installed there.
func ReadFeatureID(ctx context.Context, link Link, addr Address, featureAddr uint8) (id domain.Feature, ok bool, err error) {
	data, err := link.Execute(ctx, addr, Command{Code: CodeReadFeatureID, Data: []byte{featureAddr}})
	if errors.Is(err, ErrReceiveTimeout) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("READ_FEATURE_ID %d: %w", featureAddr, err)
	}
	if len(data) == 0 {
		return 0, false, nil
	}
	return domain.Feature(data[0]), true, nil
}

// Feature addresses probed by GetFeatures.
const (
	FirstFeatureAddress uint8 = 2
	LastFeatureAddress  uint8 = 15
)

// GetIDs reads the terminal id and the optional extended id.
func GetIDs(ctx context.Context, link Link, addr Address) (domain.TerminalID, domain.ExtendedID, error) {
	tid, err := ReadTerminalID(ctx, link, addr)
	if err != nil {
		return domain.TerminalID{}, "", err
	}
	eid, err := ReadExtendedID(ctx, link, addr)
	if err != nil {
		return domain.TerminalID{}, "", err
	}
	return tid, eid, nil
}

// GetFeatures probes every feature address and returns the installed features.
func GetFeatures(ctx context.Context, link Link, addr Address) (domain.Features, error) {
	features := make(domain.Features)
	for fa := FirstFeatureAddress; fa <= LastFeatureAddress; fa++ {
		id, ok, err := ReadFeatureID(ctx, link, addr, fa)
		if err != nil {
			return nil, err
		}
		if ok {
			features[id] = fa
		}
	}
	return features, nil
}
