package node

import (
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
)

// The node service schema. Parsed at startup with protoparse; request and
// response messages are handled dynamically, so no generated stubs exist.
const protoFileName = "covenant/node/v1/node.proto"

const protoSource = `syntax = "proto3";

package covenant.node.v1;

service CovenantNode {
  // Deploy publishes a contract and runs its top-level forms.
  rpc Deploy(DeployRequest) returns (Receipt);

  // Call invokes a public function of a deployed contract.
  rpc Call(CallRequest) returns (Receipt);

  // Eval runs source in the node's console context.
  rpc Eval(EvalRequest) returns (Receipt);

  // GetContract describes a deployed contract's callable surface.
  rpc GetContract(GetContractRequest) returns (Contract);
}

message DeployRequest {
  // Deployer address. Empty selects the node's default deployer.
  string deployer = 1;
  string name = 2;
  string source = 3;
}

message CallRequest {
  // Fully qualified contract identifier, address.name.
  string contract = 1;
  string function = 2;
  // Sender address. Empty selects the node's default deployer.
  string sender = 3;
  // Arguments as source literals, for example "u5" or "'SP123.token".
  repeated string arguments = 4;
}

message EvalRequest {
  string source = 1;
}

message GetContractRequest {
  string contract = 1;
}

message Receipt {
  string tx_id = 1;
  uint64 block_height = 2;
  // Result in source literal form. Empty when the transaction produced
  // no value.
  string result = 3;
  // Result in serialized hex form, when the value is serializable.
  string result_hex = 4;
  repeated string events = 5;
  uint64 cost = 6;
}

message Contract {
  string id = 1;
  repeated Function functions = 2;
  repeated string traits = 3;
}

message Function {
  string name = 1;
  string access = 2;
  uint32 arity = 3;
}
`

const serviceName = "covenant.node.v1.CovenantNode"

// loadServiceDescriptor parses the embedded schema and returns the node
// service descriptor.
func loadServiceDescriptor() (*desc.ServiceDescriptor, error) {
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{
			protoFileName: protoSource,
		}),
	}
	fds, err := parser.ParseFiles(protoFileName)
	if err != nil {
		return nil, fmt.Errorf("parsing node schema: %w", err)
	}
	sd := fds[0].FindService(serviceName)
	if sd == nil {
		return nil, fmt.Errorf("node schema does not define %s", serviceName)
	}
	return sd, nil
}
