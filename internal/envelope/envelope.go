package envelope

import (
	"encoding/json"
	"net/http"
)

// Response is the {code, msg, data} envelope every operation returns.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

func OK(data any) Response {
	return Response{Code: http.StatusOK, Msg: "success", Data: data}
}

func Created(data any) Response {
	return Response{Code: http.StatusCreated, Msg: "created", Data: data}
}

func Fail(code int, msg string) Response {
	return Response{Code: code, Msg: msg, Data: nil}
}

func Internal() Response {
	return Fail(http.StatusInternalServerError, "internal error")
}

// Write sends the envelope with the HTTP status mirroring Code.
func Write(w http.ResponseWriter, resp Response) {
	status := resp.Code
	if status < 100 || status > 599 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Decode reads a JSON body capped at maxBytes and rejects unknown fields.
func Decode(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		Write(w, Fail(http.StatusBadRequest, "invalid json body"))
		return false
	}
	return true
}
