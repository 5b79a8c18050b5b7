// Package security implements the gRPC transport for the security controller.
//
// Messages are plain Go structs encoded with a JSON codec registered under the
// "json" content subtype, so no generated protobuf code is needed. The service
// descriptor and client stubs are written by hand in the shape protoc-gen-go-grpc
// would produce.
package security
