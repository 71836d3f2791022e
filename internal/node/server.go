// Package node serves a Covenant session over gRPC for development
// networks. The service schema lives in this package as an embedded proto
// file; requests and responses are dynamic messages, so the package works
// without generated stubs.
package node

import (
	"context"
	"errors"
	"net"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/covenant-lang/covenant/internal/types"
	"github.com/covenant-lang/covenant/internal/vm"
)

// Server exposes one vm.Session over gRPC.
type Server struct {
	session *vm.Session
	log     *logrus.Logger
	grpc    *grpc.Server
	sd      *desc.ServiceDescriptor
}

// New builds a server around session. The service is registered
// immediately; call Serve to accept connections.
func New(session *vm.Session, log *logrus.Logger) (*Server, error) {
	sd, err := loadServiceDescriptor()
	if err != nil {
		return nil, err
	}
	s := &Server{
		session: session,
		log:     log,
		grpc:    grpc.NewServer(),
		sd:      sd,
	}
	s.grpc.RegisterService(s.serviceDesc(), s)
	return s, nil
}

// Serve accepts connections on lis until Stop is called. It blocks.
func (s *Server) Serve(lis net.Listener) error {
	s.log.WithField("addr", lis.Addr().String()).Info("node listening")
	return s.grpc.Serve(lis)
}

// Stop drains in-flight calls and shuts the server down.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

// serviceDesc builds the grpc.ServiceDesc from the parsed schema, one
// unary handler per method.
func (s *Server) serviceDesc() *grpc.ServiceDesc {
	gd := &grpc.ServiceDesc{
		ServiceName: s.sd.GetFullyQualifiedName(),
		HandlerType: (*interface{})(nil),
		Metadata:    s.sd.GetFile().GetName(),
	}
	for _, method := range s.sd.GetMethods() {
		md := method
		gd.Methods = append(gd.Methods, grpc.MethodDesc{
			MethodName: md.GetName(),
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
				return srv.(*Server).handleUnary(ctx, md, dec)
			},
		})
	}
	return gd
}

func (s *Server) handleUnary(_ context.Context, md *desc.MethodDescriptor, dec func(interface{}) error) (interface{}, error) {
	in := dynamic.NewMessage(md.GetInputType())
	if err := dec(in); err != nil {
		return nil, err
	}
	out := dynamic.NewMessage(md.GetOutputType())

	var err error
	switch md.GetName() {
	case "Deploy":
		err = s.deploy(in, out)
	case "Call":
		err = s.call(in, out)
	case "Eval":
		err = s.eval(in, out)
	case "GetContract":
		err = s.getContract(in, out)
	default:
		err = status.Errorf(codes.Unimplemented, "method %s", md.GetName())
	}
	if err != nil {
		s.log.WithField("method", md.GetName()).WithError(err).Warn("request failed")
		return nil, toStatus(err)
	}
	return out, nil
}

func (s *Server) deploy(in, out *dynamic.Message) error {
	deployer := stringField(in, "deployer")
	name := stringField(in, "name")
	source := stringField(in, "source")

	r, err := s.session.Deploy(deployer, name, source)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"tx":       r.TxID,
		"contract": name,
		"cost":     r.Cost,
	}).Info("contract deployed")
	return setReceipt(out, r)
}

func (s *Server) call(in, out *dynamic.Message) error {
	contract := stringField(in, "contract")
	function := stringField(in, "function")
	sender := stringField(in, "sender")

	var args []types.Value
	for _, raw := range repeatedStringField(in, "arguments") {
		v, err := s.session.ParseValue(raw)
		if err != nil {
			return err
		}
		args = append(args, v)
	}

	r, err := s.session.Call(contract, function, sender, args)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"tx":       r.TxID,
		"contract": contract,
		"function": function,
		"cost":     r.Cost,
	}).Info("function called")
	return setReceipt(out, r)
}

func (s *Server) eval(in, out *dynamic.Message) error {
	r, err := s.session.Eval(stringField(in, "source"))
	if err != nil {
		return err
	}
	return setReceipt(out, r)
}

func (s *Server) getContract(in, out *dynamic.Message) error {
	info, err := s.session.ContractInfo(stringField(in, "contract"))
	if err != nil {
		return err
	}
	out.SetFieldByName("id", info.ID)

	fnType := out.GetMessageDescriptor().FindFieldByName("functions").GetMessageType()
	for _, fn := range info.Functions {
		m := dynamic.NewMessage(fnType)
		m.SetFieldByName("name", fn.Name)
		m.SetFieldByName("access", fn.Access)
		m.SetFieldByName("arity", uint32(fn.Arity))
		out.AddRepeatedFieldByName("functions", m)
	}
	for _, trait := range info.Traits {
		out.AddRepeatedFieldByName("traits", trait)
	}
	return nil
}

func setReceipt(out *dynamic.Message, r *vm.Receipt) error {
	out.SetFieldByName("tx_id", r.TxID)
	out.SetFieldByName("block_height", r.BlockHeight)
	out.SetFieldByName("cost", r.Cost)
	for _, event := range r.Events {
		out.AddRepeatedFieldByName("events", event)
	}
	if r.Result == nil {
		return nil
	}
	out.SetFieldByName("result", r.Result.String())
	hex, err := types.SerializeHex(r.Result)
	if err != nil {
		// Values that exist only at run time, for example a bare trait
		// reference, have no serialized form. The literal rendering in
		// the result field still describes them.
		return nil
	}
	out.SetFieldByName("result_hex", hex)
	return nil
}

func stringField(m *dynamic.Message, name string) string {
	v, _ := m.GetFieldByName(name).(string)
	return v
}

func repeatedStringField(m *dynamic.Message, name string) []string {
	items, _ := m.GetFieldByName(name).([]interface{})
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// toStatus maps session errors onto gRPC status codes. Anything the
// caller could have caused is InvalidArgument or NotFound; budget
// exhaustion is ResourceExhausted; interpreter bugs are Internal.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	var (
		noContract *vm.NoSuchContractError
		noFunction *vm.NoSuchPublicFunctionError
		exists     *vm.ContractAlreadyExistsError
		budget     *vm.CostBudgetError
		internal   *vm.InternalError
	)
	switch {
	case errors.As(err, &noContract), errors.As(err, &noFunction):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &exists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.As(err, &budget):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.As(err, &internal):
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.InvalidArgument, err.Error())
	}
}
