// Package analysis drives the LLM boundary: atomizing cleaned utterances
// into semantic atoms, deep-analyzing one segment's atoms into entity and
// topic fragments, and annotating atoms with semantic tags. Deep analysis
// degrades to a deterministic default structure when the model output stays
// undecodable past the retry bound; the result carries a Fallback flag so
// callers can tell a real analysis from a default.
package analysis
