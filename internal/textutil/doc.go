// Package textutil provides text processing utilities for fingerprinting,
// similarity, and project identifier sanitization.
//
// Fingerprints use term frequency vectors normalized for efficient
// comparison. Tokenization lowercases text, keeps Latin/digit runs as word
// tokens, and turns Han runs into overlapping character bigrams so Chinese
// transcript text compares without a word segmenter.
package textutil
