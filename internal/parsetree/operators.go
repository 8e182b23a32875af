package parsetree

import "fmt"

// Operator tags an InternalNode
type Operator int

const (
	OpAdd Operator = iota + 1
	OpSub
	OpMult
	OpDiv
	OpPow
	OpExp
	OpAbs
	OpMin
	OpMax
)

type operatorInfo struct {
	name   string
	symbol string
	arity  int
	// infix operators render between their operands
	infix bool
}

var operatorTable = map[Operator]operatorInfo{
	OpAdd:  {name: "add", symbol: "+", arity: 2, infix: true},
	OpSub:  {name: "sub", symbol: "-", arity: 2, infix: true},
	OpMult: {name: "mult", symbol: "*", arity: 2, infix: true},
	OpDiv:  {name: "div", symbol: "/", arity: 2, infix: true},
	OpPow:  {name: "pow", symbol: "pow", arity: 2},
	OpExp:  {name: "exp", symbol: "exp", arity: 1},
	OpAbs:  {name: "abs", symbol: "abs", arity: 1},
	OpMin:  {name: "min", symbol: "min", arity: 2},
	OpMax:  {name: "max", symbol: "max", arity: 2},
}

// infixOperators maps textual operator tokens to tags
var infixOperators = map[string]Operator{
	"+":  OpAdd,
	"-":  OpSub,
	"*":  OpMult,
	"/":  OpDiv,
	"**": OpPow,
	"^":  OpPow,
}

// functionOperators maps callable names to tags
var functionOperators = map[string]Operator{
	"abs": OpAbs,
	"exp": OpExp,
	"min": OpMin,
	"max": OpMax,
	"pow": OpPow,
}

func (op Operator) String() string {
	if info, ok := operatorTable[op]; ok {
		return info.name
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// Symbol is the token used when rendering the operator
func (op Operator) Symbol() string {
	return operatorTable[op].symbol
}

// Arity is 1 for abs and exp, 2 otherwise
func (op Operator) Arity() int {
	return operatorTable[op].arity
}

// LookupInfix returns the operator for an infix token
func LookupInfix(token string) (Operator, bool) {
	op, ok := infixOperators[token]
	return op, ok
}

// LookupFunction returns the operator for a function name
func LookupFunction(name string) (Operator, bool) {
	op, ok := functionOperators[name]
	return op, ok
}
