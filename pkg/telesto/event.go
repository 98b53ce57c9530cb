package telesto

import "fmt"

// DataIndication is the decoded payload of a DATA_IND or REPEAT_IND.
type DataIndication struct {
	Data []byte
	// RSSI of the received packet in dBm.
	RSSI int8
}

// ParseDataIndication splits a received-data payload into user data and the
// trailing RSSI byte.
func ParseDataIndication(payload []byte) (DataIndication, error) {
	if len(payload) < 1 {
		return DataIndication{}, fmt.Errorf("data indication: %w", ErrMalformedResponse)
	}
	data := make([]byte, len(payload)-1)
	copy(data, payload)
	return DataIndication{
		Data: data,
		RSSI: int8(payload[len(payload)-1]),
	}, nil
}
