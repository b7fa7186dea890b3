package chomikuj

import (
	"bytes"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
)

// Mode selects how a response is judged successful.
//
// The site is inconsistent: some endpoints answer with JSON, some with
// plain HTML, some with no body at all, and JSON answers mark success in
// several different ways.
type Mode int

const (
	ModeStatus200 Mode = iota
	ModeStatus400
	ModeJSONDataStatusOK
	ModeJSONDataStatusZero
	ModeJSONURL
	ModeJSONIsSuccess
)

var modeNames = map[Mode]string{
	ModeStatus200:          "status_200",
	ModeStatus400:          "status_400",
	ModeJSONDataStatusOK:   "json_data_status_ok",
	ModeJSONDataStatusZero: "json_data_status_zero",
	ModeJSONURL:            "json_url",
	ModeJSONIsSuccess:      "json_issuccess_one",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// Classify reports whether resp is a success under mode.
//
// The body is buffered and put back so it can be read again afterwards.
// Bodies that are not a JSON object never pass a JSON mode.
func Classify(resp *http.Response, mode Mode) bool {
	if resp == nil {
		return false
	}
	switch mode {
	case ModeStatus200:
		return resp.StatusCode == http.StatusOK
	case ModeStatus400:
		return resp.StatusCode == http.StatusBadRequest
	}

	body, err := peekBody(resp)
	if err != nil {
		return false
	}
	doc := decodeObject(body)
	if doc == nil {
		return false
	}

	switch mode {
	case ModeJSONDataStatusOK:
		status, ok := dataStatus(doc)
		if !ok {
			return false
		}
		s, ok := status.(string)
		return ok && s == "OK"
	case ModeJSONDataStatusZero:
		status, ok := dataStatus(doc)
		if !ok {
			return false
		}
		n, ok := status.(json.Number)
		return ok && n.String() == "0"
	case ModeJSONURL:
		u, ok := doc["Url"]
		return ok && u != nil
	case ModeJSONIsSuccess:
		b, ok := doc["IsSuccess"].(bool)
		return ok && b
	}
	return false
}

// peekBody reads the whole body and replaces it with a fresh reader over
// the same bytes.
func peekBody(resp *http.Response) ([]byte, error) {
	if resp.Body == nil {
		return nil, nil
	}
	body, err := ioutil.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = ioutil.NopCloser(bytes.NewReader(body))
	return body, err
}

// decodeObject returns nil unless data is a JSON object.
func decodeObject(data []byte) map[string]interface{} {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil
	}
	// trailing garbage means this was not JSON after all
	if _, err := dec.Token(); err != io.EOF {
		return nil
	}
	return doc
}

func dataStatus(doc map[string]interface{}) (interface{}, bool) {
	data, ok := doc["Data"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	status, ok := data["Status"]
	return status, ok && status != nil
}
