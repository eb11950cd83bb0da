package model

// Daraja STK push callback payload.

type StkCallbackEnvelope struct {
	Body StkCallbackBody `json:"Body"`
}

type StkCallbackBody struct {
	StkCallback StkCallback `json:"stkCallback"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem values are numbers or strings depending on Name.
type CallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

// Lookup returns the value of the first metadata item called name.
func (m *CallbackMetadata) Lookup(name string) (any, bool) {
	if m == nil {
		return nil, false
	}
	for _, item := range m.Item {
		if item.Name == name {
			return item.Value, item.Value != nil
		}
	}
	return nil, false
}

// StkCallbackAck is the body the gateway expects back from the callback URL.
type StkCallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}
