package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// Minimal TwiML builder for the outbound leg: the answered call is
// connected straight to our media stream endpoint. No provider SDK.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlConnect struct {
	XMLName xml.Name    `xml:"Connect"`
	Stream  twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL string `xml:"url,attr"`
}

// ConnectStreamTwiML renders <Connect><Stream url=.../></Connect> for
// the given websocket media URL.
func ConnectStreamTwiML(mediaURL string) (string, error) {
	if strings.TrimSpace(mediaURL) == "" {
		return "", errors.New("telephony: media url is required")
	}

	r := twimlResponse{Verbs: []any{twimlConnect{Stream: twimlStream{URL: mediaURL}}}}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
