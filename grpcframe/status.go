package grpcframe

import (
	"net/http"
	"net/url"
	"strconv"

	"google.golang.org/grpc/codes"
)

// httpToGRPC maps a non-200 HTTP status to the gRPC code it corresponds to.
var httpToGRPC = map[int]codes.Code{
	http.StatusBadRequest:          codes.Internal,
	http.StatusUnauthorized:        codes.Unauthenticated,
	http.StatusForbidden:           codes.PermissionDenied,
	http.StatusNotFound:            codes.Unimplemented,
	http.StatusTooManyRequests:     codes.Unavailable,
	http.StatusBadGateway:          codes.Unavailable,
	http.StatusServiceUnavailable:  codes.Unavailable,
	http.StatusGatewayTimeout:      codes.Unavailable,
}

// CodeForHTTPStatus maps HTTP status to a gRPC code. 200 is not covered by
// this table; callers only use it for non-200 handling.
func CodeForHTTPStatus(httpStatus int) codes.Code {
	if c, ok := httpToGRPC[httpStatus]; ok {
		return c
	}
	return codes.Unknown
}

// Status is the decoded terminal gRPC status for a request, surfaced at
// end-of-stream.
type Status struct {
	Code    codes.Code
	Message string
}

// StatusFromTrailer extracts (grpc-status, grpc-message) from HTTP/2
// trailers. If grpc-status is absent but the HTTP response was 200 and the
// stream ended cleanly, the status is Unknown. If the HTTP
// status itself was non-200, that maps to a status via CodeForHTTPStatus
// and trailers are not consulted for the code (a non-200 response has no
// gRPC trailers to speak of).
func StatusFromTrailer(trailer http.Header, httpStatus int, streamEndedCleanly bool) Status {
	if httpStatus != http.StatusOK {
		return Status{Code: CodeForHTTPStatus(httpStatus), Message: http.StatusText(httpStatus)}
	}

	raw := trailer.Get("grpc-status")
	if raw == "" {
		if streamEndedCleanly {
			return Status{Code: codes.Unknown}
		}
		return Status{Code: codes.Unknown, Message: "stream ended without a grpc-status trailer"}
	}

	code, err := strconv.Atoi(raw)
	if err != nil {
		return Status{Code: codes.Unknown, Message: "malformed grpc-status trailer"}
	}

	message := trailer.Get("grpc-message")
	if decoded, err := url.QueryUnescape(message); err == nil {
		message = decoded
	}
	return Status{Code: codes.Code(code), Message: message}
}

// ContentTypeOK reports whether a response Content-Type is an acceptable
// gRPC content type. Anything else maps to Unknown.
func ContentTypeOK(contentType string) bool {
	switch contentType {
	case "application/grpc", "application/grpc+proto":
		return true
	default:
		return false
	}
}
