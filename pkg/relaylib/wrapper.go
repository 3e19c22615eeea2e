// Package relaylib is the runtime shared by the relay functions: invocation
// environment, configuration, the upstream HTTP client and the Lambda/HTTP
// adapters.
package relaylib

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cdl-rdv/formrelay/pkg/trace"
)

// Func handles one invocation.
type Func func(env *Env) Response

// LambdaHandler is the signature accepted by lambda.Start.
type LambdaHandler func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Wrapper adapts f to API Gateway proxy events. It opens the root span,
// logs one line per invocation and turns panics into a 500 envelope so
// nothing escapes unhandled.
func Wrapper(f Func) LambdaHandler {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		start := time.Now()
		env, err := PrepareEnv(ctx, req)
		if err != nil {
			resp := JSON(http.StatusBadRequest, map[string]string{
				"error":   "Données du formulaire invalides",
				"details": err.Error(),
			})
			return toEvent(resp), nil
		}

		originalCtx := env.Ctx
		ctx, span := trace.NewSpan(env.Ctx, "Wrapper",
			attribute.String("request.id", env.RequestID),
			attribute.String("http.method", env.Method),
		)
		env.Ctx = ctx
		defer func() {
			span.End()
			env.Ctx = originalCtx
		}()

		resp := invoke(f, env)
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

		log.Printf("request_id=%s function=%s method=%s status=%d bytes=%d duration=%s",
			env.RequestID,
			env.FunctionName,
			env.Method,
			resp.StatusCode,
			len(resp.Body),
			time.Since(start),
		)
		return toEvent(resp), nil
	}
}

func invoke(f Func, env *Env) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("request_id=%s panic=%v", env.RequestID, r)
			resp = JSON(http.StatusInternalServerError, map[string]string{
				"error":   "Erreur de soumission",
				"details": fmt.Sprint(r),
			})
		}
	}()
	return f(env)
}

func toEvent(resp Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}

// HTTPHandler serves a LambdaHandler over plain net/http, for local runs of
// the function behind the same event shape API Gateway delivers.
func HTTPHandler(h LambdaHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "reading body", http.StatusBadRequest)
			return
		}
		headers := make(map[string]string, len(r.Header))
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}
		query := make(map[string]string, len(r.URL.Query()))
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}

		resp, err := h(r.Context(), events.APIGatewayProxyRequest{
			HTTPMethod:            r.Method,
			Path:                  r.URL.Path,
			Headers:               headers,
			QueryStringParameters: query,
			Body:                  string(body),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" && !strings.EqualFold(r.Method, http.MethodHead) {
			_, _ = io.WriteString(w, resp.Body)
		}
	})
}
