// Package normalisers provides implementations of the Normaliser interface
// for the document formats regulations are published in. Each normaliser
// extracts cleaned, page-structured text from one family of MIME types.
//
// Normalisers are registered with the Registry at startup; the highest
// priority normaliser for a MIME type wins.
package normalisers
