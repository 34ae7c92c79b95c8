// Package textutil provides the string handling behind transcript
// consolidation: fragment canonicalization and junk filtering, edit-distance
// similarity, and title sanitization for exported file names.
//
// Canonical text is NFC-normalized, lower-cased, stripped of everything but
// letters, digits and spaces, and whitespace-collapsed. Two fragments compare
// equal when their canonical forms do, regardless of punctuation or casing
// differences introduced by a re-rendering caption UI.
//
// Denylists are regular expressions anchored to the whole fragment. They come
// from configuration, optionally extended by a YAML pattern file.
package textutil
