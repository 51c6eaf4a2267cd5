// Package nutrition turns OCR text from packaged-food labels into nutrition
// facts.
//
// The flow is Normalize → Extract → Derive → Assemble. A Vocabulary (synonym
// table plus OCR fix-ups) is built once and shared read-only; every call
// produces request-local values and never mutates the vocabulary.
//
// Missing data is not an error: absent fields, unparsable numbers and
// defaulted serving counts are recorded as Issues on the result and reflected
// in the OutcomeKind. Only malformed internal state makes Assemble fail.
package nutrition
