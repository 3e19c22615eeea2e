package relaylib

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/lithammer/shortuuid"
	"github.com/pkg/errors"

	"github.com/cdl-rdv/formrelay/pkg/trace"
)

// RequestIDHeader carries a caller supplied request id when the function is
// not running inside Lambda.
const RequestIDHeader = "X-Request-Id"

// Env is the per-invocation state handed to a function.
type Env struct {
	Ctx context.Context

	FunctionName string
	RequestID    string
	Method       string
	Path         string
	Headers      map[string]string
	Body         string
}

// PrepareEnv builds the Env of one API Gateway invocation. The trace
// context sent by the caller, if any, becomes the parent of ctx.
func PrepareEnv(ctx context.Context, req events.APIGatewayProxyRequest) (*Env, error) {
	body := req.Body
	if req.IsBase64Encoded && body != "" {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, errors.Wrap(err, "decoding base64 body")
		}
		body = string(raw)
	}

	return &Env{
		Ctx:          trace.ExtractHeaders(ctx, req.Headers),
		FunctionName: lambdacontext.FunctionName,
		RequestID:    requestID(ctx, req.Headers),
		Method:       strings.ToUpper(req.HTTPMethod),
		Path:         req.Path,
		Headers:      req.Headers,
		Body:         body,
	}, nil
}

func requestID(ctx context.Context, headers map[string]string) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	for k, v := range headers {
		if strings.EqualFold(k, RequestIDHeader) && v != "" {
			return v
		}
	}
	return shortuuid.New()
}
