// Package protocol implements the line-delimited JSON wire format spoken by
// the kernel over its standard streams.
//
// Every line written to the kernel's stdin is one command envelope:
//
//	{"token":"01J...","commandType":"SubmitCode","command":{"code":"1+1"}}
//
// Every line read from the kernel's stdout is one event envelope:
//
//	{"eventType":"KernelReady","event":{}}
//	{"eventType":"DiagnosticLogEntryProduced","event":{"message":"boot ok"}}
//
// Payloads are opaque JSON to this package. Only two discriminants are
// interpreted by the host: KernelReady, which resolves the transport's
// readiness signal, and DiagnosticLogEntryProduced, whose message is forwarded
// to the diagnostic sink. Every other event type passes through untouched.
//
// Example usage:
//
//	line, err := protocol.EncodeCommand(&protocol.CommandEnvelope{
//	    Token:       protocol.NewToken(),
//	    CommandType: "SubmitCode",
//	    Command:     map[string]any{"code": "1+1"},
//	})
//
//	env, err := protocol.DecodeEvent(scannerLine)
//	switch env.Kind() {
//	case protocol.KindReady:
//	case protocol.KindDiagnostic:
//	default:
//	}
package protocol
