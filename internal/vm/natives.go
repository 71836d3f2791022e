package vm

import (
	"math/big"

	"github.com/covenant-lang/covenant/internal/types"
)

// nativeTable lists the built-ins that receive evaluated arguments.
var nativeTable = map[string]*NativeFunction{
	"+":           {Name: "+", Fn: nativeAdd},
	"-":           {Name: "-", Fn: nativeSub},
	"*":           {Name: "*", Fn: nativeMul},
	"/":           {Name: "/", Fn: nativeDiv},
	"mod":         {Name: "mod", Fn: nativeMod},
	"pow":         {Name: "pow", Fn: nativePow},
	"<":           {Name: "<", Fn: compareNative("<", func(c int) bool { return c < 0 })},
	"<=":          {Name: "<=", Fn: compareNative("<=", func(c int) bool { return c <= 0 })},
	">":           {Name: ">", Fn: compareNative(">", func(c int) bool { return c > 0 })},
	">=":          {Name: ">=", Fn: compareNative(">=", func(c int) bool { return c >= 0 })},
	"is-eq":       {Name: "is-eq", Fn: nativeIsEq},
	"not":         {Name: "not", Fn: nativeNot},
	"to-int":      {Name: "to-int", Fn: nativeToInt},
	"to-uint":     {Name: "to-uint", Fn: nativeToUint},
	"some":        {Name: "some", Fn: nativeSome},
	"ok":          {Name: "ok", Fn: nativeOk},
	"err":         {Name: "err", Fn: nativeErr},
	"is-some":     {Name: "is-some", Fn: optionalPredicate("is-some", true)},
	"is-none":     {Name: "is-none", Fn: optionalPredicate("is-none", false)},
	"is-ok":       {Name: "is-ok", Fn: responsePredicate("is-ok", true)},
	"is-err":      {Name: "is-err", Fn: responsePredicate("is-err", false)},
	"default-to":  {Name: "default-to", Fn: nativeDefaultTo},
	"unwrap-panic": {Name: "unwrap-panic", Fn: nativeUnwrapPanic},
	"len":         {Name: "len", Fn: nativeLen},
	"concat":      {Name: "concat", Fn: nativeConcat},
	"append":      {Name: "append", Fn: nativeAppend},
	"list":        {Name: "list", Fn: nativeList},
	"element-at?": {Name: "element-at?", Fn: nativeElementAt},
}

func exactArgs(n int, args []types.Value) error {
	if len(args) != n {
		return &IncorrectArgumentCountError{Expected: n, Actual: len(args)}
	}
	return nil
}

// numericArgs requires every argument to share one integer kind. The
// kind of the first argument decides what the rest must be.
func numericArgs(args []types.Value) ([]*big.Int, bool, error) {
	if len(args) == 0 {
		return nil, false, &IncorrectArgumentCountError{Expected: 1, Actual: 0}
	}
	switch args[0].(type) {
	case *types.IntValue:
		out := make([]*big.Int, len(args))
		for i, a := range args {
			iv, ok := a.(*types.IntValue)
			if !ok {
				return nil, false, &TypeValueError{Expected: types.IntType{}, Value: a}
			}
			out[i] = iv.Val
		}
		return out, true, nil
	case *types.UintValue:
		out := make([]*big.Int, len(args))
		for i, a := range args {
			uv, ok := a.(*types.UintValue)
			if !ok {
				return nil, false, &TypeValueError{Expected: types.UintType{}, Value: a}
			}
			out[i] = uv.Val
		}
		return out, false, nil
	default:
		return nil, false, &TypeValueError{Expected: types.IntType{}, Value: args[0]}
	}
}

func numericResult(op string, v *big.Int, signed bool) (types.Value, error) {
	if signed {
		if !types.FitsInt(v) {
			return nil, &OperationError{Op: op, Reason: "integer overflow"}
		}
		return types.NewInt(v), nil
	}
	if v.Sign() < 0 {
		return nil, &OperationError{Op: op, Reason: "integer underflow"}
	}
	if !types.FitsUint(v) {
		return nil, &OperationError{Op: op, Reason: "integer overflow"}
	}
	return types.NewUint(v), nil
}

func nativeAdd(args []types.Value) (types.Value, error) {
	nums, signed, err := numericArgs(args)
	if err != nil {
		return nil, err
	}
	acc := new(big.Int).Set(nums[0])
	for _, n := range nums[1:] {
		acc.Add(acc, n)
	}
	return numericResult("+", acc, signed)
}

// nativeSub negates with a single argument and folds otherwise.
func nativeSub(args []types.Value) (types.Value, error) {
	nums, signed, err := numericArgs(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 1 {
		return numericResult("-", new(big.Int).Neg(nums[0]), signed)
	}
	acc := new(big.Int).Set(nums[0])
	for _, n := range nums[1:] {
		acc.Sub(acc, n)
	}
	return numericResult("-", acc, signed)
}

func nativeMul(args []types.Value) (types.Value, error) {
	nums, signed, err := numericArgs(args)
	if err != nil {
		return nil, err
	}
	acc := new(big.Int).Set(nums[0])
	for _, n := range nums[1:] {
		acc.Mul(acc, n)
		if acc.BitLen() > 256 {
			return nil, &OperationError{Op: "*", Reason: "integer overflow"}
		}
	}
	return numericResult("*", acc, signed)
}

// nativeDiv truncates toward zero, like the rest of the integer model.
func nativeDiv(args []types.Value) (types.Value, error) {
	if len(args) < 2 {
		return nil, &IncorrectArgumentCountError{Expected: 2, Actual: len(args)}
	}
	nums, signed, err := numericArgs(args)
	if err != nil {
		return nil, err
	}
	acc := new(big.Int).Set(nums[0])
	for _, n := range nums[1:] {
		if n.Sign() == 0 {
			return nil, &OperationError{Op: "/", Reason: "division by zero"}
		}
		acc.Quo(acc, n)
	}
	return numericResult("/", acc, signed)
}

func nativeMod(args []types.Value) (types.Value, error) {
	if err := exactArgs(2, args); err != nil {
		return nil, err
	}
	nums, signed, err := numericArgs(args)
	if err != nil {
		return nil, err
	}
	if nums[1].Sign() == 0 {
		return nil, &OperationError{Op: "mod", Reason: "division by zero"}
	}
	return numericResult("mod", new(big.Int).Rem(nums[0], nums[1]), signed)
}

func nativePow(args []types.Value) (types.Value, error) {
	if err := exactArgs(2, args); err != nil {
		return nil, err
	}
	nums, signed, err := numericArgs(args)
	if err != nil {
		return nil, err
	}
	base, exponent := nums[0], nums[1]
	if exponent.Sign() < 0 {
		return nil, &OperationError{Op: "pow", Reason: "negative exponent"}
	}

	// With |base| of at least 2, any exponent past 200 overflows 128
	// bits, so the bound keeps big.Exp from computing huge powers.
	if base.CmpAbs(big.NewInt(1)) > 0 && exponent.Cmp(big.NewInt(200)) > 0 {
		return nil, &OperationError{Op: "pow", Reason: "integer overflow"}
	}
	var exp *big.Int
	if exponent.IsUint64() {
		exp = new(big.Int).SetUint64(exponent.Uint64())
	} else {
		// Base is -1, 0 or 1 here; only parity matters.
		exp = new(big.Int).And(exponent, big.NewInt(1))
		if base.Sign() == 0 && exponent.Sign() != 0 {
			exp = big.NewInt(1)
		}
	}
	return numericResult("pow", new(big.Int).Exp(base, exp, nil), signed)
}

func compareNative(op string, accepts func(int) bool) NativeHandler {
	return func(args []types.Value) (types.Value, error) {
		if err := exactArgs(2, args); err != nil {
			return nil, err
		}
		nums, _, err := numericArgs(args)
		if err != nil {
			return nil, err
		}
		return types.Bool(accepts(nums[0].Cmp(nums[1]))), nil
	}
}

// nativeIsEq reports whether every argument equals the first.
func nativeIsEq(args []types.Value) (types.Value, error) {
	if len(args) == 0 {
		return nil, &IncorrectArgumentCountError{Expected: 1, Actual: 0}
	}
	first := args[0]
	for _, a := range args[1:] {
		if !first.Equal(a) {
			return types.False, nil
		}
	}
	return types.True, nil
}

func nativeNot(args []types.Value) (types.Value, error) {
	if err := exactArgs(1, args); err != nil {
		return nil, err
	}
	b, ok := args[0].(*types.BoolValue)
	if !ok {
		return nil, &TypeValueError{Expected: types.BoolType{}, Value: args[0]}
	}
	return types.Bool(!b.Val), nil
}

func nativeToInt(args []types.Value) (types.Value, error) {
	if err := exactArgs(1, args); err != nil {
		return nil, err
	}
	u, ok := args[0].(*types.UintValue)
	if !ok {
		return nil, &TypeValueError{Expected: types.UintType{}, Value: args[0]}
	}
	if !types.FitsInt(u.Val) {
		return nil, &OperationError{Op: "to-int", Reason: "integer overflow"}
	}
	return types.NewInt(u.Val), nil
}

func nativeToUint(args []types.Value) (types.Value, error) {
	if err := exactArgs(1, args); err != nil {
		return nil, err
	}
	i, ok := args[0].(*types.IntValue)
	if !ok {
		return nil, &TypeValueError{Expected: types.IntType{}, Value: args[0]}
	}
	if i.Val.Sign() < 0 {
		return nil, &OperationError{Op: "to-uint", Reason: "integer underflow"}
	}
	return types.NewUint(i.Val), nil
}

func nativeSome(args []types.Value) (types.Value, error) {
	if err := exactArgs(1, args); err != nil {
		return nil, err
	}
	return types.Some(args[0]), nil
}

func nativeOk(args []types.Value) (types.Value, error) {
	if err := exactArgs(1, args); err != nil {
		return nil, err
	}
	return types.Ok(args[0]), nil
}

func nativeErr(args []types.Value) (types.Value, error) {
	if err := exactArgs(1, args); err != nil {
		return nil, err
	}
	return types.Err(args[0]), nil
}

func optionalPredicate(op string, wantSome bool) NativeHandler {
	return func(args []types.Value) (types.Value, error) {
		if err := exactArgs(1, args); err != nil {
			return nil, err
		}
		o, ok := args[0].(*types.OptionalValue)
		if !ok {
			return nil, &OperationError{Op: op, Reason: "expected an optional value, got " + args[0].Type()}
		}
		return types.Bool(o.IsNone() != wantSome), nil
	}
}

func responsePredicate(op string, wantOk bool) NativeHandler {
	return func(args []types.Value) (types.Value, error) {
		if err := exactArgs(1, args); err != nil {
			return nil, err
		}
		r, ok := args[0].(*types.ResponseValue)
		if !ok {
			return nil, &OperationError{Op: op, Reason: "expected a response value, got " + args[0].Type()}
		}
		return types.Bool(r.Committed == wantOk), nil
	}
}

func nativeDefaultTo(args []types.Value) (types.Value, error) {
	if err := exactArgs(2, args); err != nil {
		return nil, err
	}
	o, ok := args[1].(*types.OptionalValue)
	if !ok {
		return nil, &OperationError{Op: "default-to", Reason: "expected an optional value, got " + args[1].Type()}
	}
	if o.IsNone() {
		return args[0], nil
	}
	return o.Val, nil
}

func nativeUnwrapPanic(args []types.Value) (types.Value, error) {
	if err := exactArgs(1, args); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case *types.OptionalValue:
		if v.IsNone() {
			return nil, &OperationError{Op: "unwrap-panic", Reason: "attempted to unwrap a none value"}
		}
		return v.Val, nil
	case *types.ResponseValue:
		if !v.Committed {
			return nil, &OperationError{Op: "unwrap-panic", Reason: "attempted to unwrap an err value"}
		}
		return v.Val, nil
	default:
		return nil, &OperationError{Op: "unwrap-panic", Reason: "expected an optional or response value, got " + args[0].Type()}
	}
}

func nativeLen(args []types.Value) (types.Value, error) {
	if err := exactArgs(1, args); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case *types.StringValue:
		return types.NewUintFromUint64(uint64(len(v.Val))), nil
	case *types.BufferValue:
		return types.NewUintFromUint64(uint64(len(v.Val))), nil
	case *types.ListValue:
		return types.NewUintFromUint64(uint64(len(v.Items))), nil
	default:
		return nil, &OperationError{Op: "len", Reason: "expected a string, buffer or list, got " + args[0].Type()}
	}
}

func nativeConcat(args []types.Value) (types.Value, error) {
	if err := exactArgs(2, args); err != nil {
		return nil, err
	}
	switch a := args[0].(type) {
	case *types.StringValue:
		if b, ok := args[1].(*types.StringValue); ok {
			return &types.StringValue{Val: a.Val + b.Val}, nil
		}
	case *types.BufferValue:
		if b, ok := args[1].(*types.BufferValue); ok {
			joined := make([]byte, 0, len(a.Val)+len(b.Val))
			joined = append(joined, a.Val...)
			return types.NewBuffer(append(joined, b.Val...)), nil
		}
	case *types.ListValue:
		if b, ok := args[1].(*types.ListValue); ok {
			items := make([]types.Value, 0, len(a.Items)+len(b.Items))
			items = append(items, a.Items...)
			return &types.ListValue{Items: append(items, b.Items...)}, nil
		}
	}
	return nil, &OperationError{Op: "concat", Reason: "expected two sequences of the same kind"}
}

func nativeAppend(args []types.Value) (types.Value, error) {
	if err := exactArgs(2, args); err != nil {
		return nil, err
	}
	l, ok := args[0].(*types.ListValue)
	if !ok {
		return nil, &OperationError{Op: "append", Reason: "expected a list, got " + args[0].Type()}
	}
	items := make([]types.Value, 0, len(l.Items)+1)
	items = append(items, l.Items...)
	return &types.ListValue{Items: append(items, args[1])}, nil
}

// nativeList builds a list and requires the elements to share one kind.
// No arguments is valid and yields the empty list.
func nativeList(args []types.Value) (types.Value, error) {
	if len(args) == 0 {
		return &types.ListValue{}, nil
	}
	for _, a := range args[1:] {
		if a.Type() != args[0].Type() {
			return nil, &OperationError{Op: "list", Reason: "elements must share one type"}
		}
	}
	return &types.ListValue{Items: append([]types.Value(nil), args...)}, nil
}

func nativeElementAt(args []types.Value) (types.Value, error) {
	if err := exactArgs(2, args); err != nil {
		return nil, err
	}
	index, ok := args[1].(*types.UintValue)
	if !ok {
		return nil, &TypeValueError{Expected: types.UintType{}, Value: args[1]}
	}
	if !index.Val.IsUint64() {
		return types.None, nil
	}
	i := index.Val.Uint64()
	switch v := args[0].(type) {
	case *types.ListValue:
		if i >= uint64(len(v.Items)) {
			return types.None, nil
		}
		return types.Some(v.Items[i]), nil
	case *types.StringValue:
		if i >= uint64(len(v.Val)) {
			return types.None, nil
		}
		return types.Some(&types.StringValue{Val: string(v.Val[i])}), nil
	case *types.BufferValue:
		if i >= uint64(len(v.Val)) {
			return types.None, nil
		}
		return types.Some(types.NewBuffer([]byte{v.Val[i]})), nil
	default:
		return nil, &OperationError{Op: "element-at?", Reason: "expected a string, buffer or list, got " + args[0].Type()}
	}
}
