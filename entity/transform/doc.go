/*
Package transform is the native/default implementation of the record transformer.
It is made externally accessible since it's useful for testing pre-transform hooks and for
reusing the key/value pair normalization (NormalizePairs) outside of the batch pipeline.

Client-provided custom transformation logic can be added via the pre-transform hook function.
*/
package transform
