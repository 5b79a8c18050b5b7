// Package analyzer provides image analyzers that decide whether a camera
// snapshot shows a cat.
//
// Fake returns random verdicts and is meant for demos and local runs. HTTP
// sends the image to a label-detection service and looks for a "cat" label
// whose confidence reaches the requested threshold.
package analyzer
