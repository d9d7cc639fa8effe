package chain

import "encoding/json"

// Resource is one typed on-chain resource as returned by the fullnode REST
// API. Data stays raw until the extractor parses it into a typed form.
type Resource struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type MoveFunction struct {
	Name              string   `json:"name"`
	Visibility        string   `json:"visibility"`
	IsEntry           bool     `json:"is_entry"`
	IsView            bool     `json:"is_view"`
	GenericTypeParams []any    `json:"generic_type_params"`
	Params            []string `json:"params"`
	Return            []string `json:"return"`
}

type MoveStruct struct {
	Name      string   `json:"name"`
	Abilities []string `json:"abilities"`
	Fields    []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"fields"`
}

// ModuleABI is the declared interface of one Move module.
type ModuleABI struct {
	Address          string         `json:"address"`
	Name             string         `json:"name"`
	Friends          []string       `json:"friends"`
	ExposedFunctions []MoveFunction `json:"exposed_functions"`
	Structs          []MoveStruct   `json:"structs"`
}

// MoveModule is bytecode plus the optional ABI descriptor for one module.
type MoveModule struct {
	Bytecode string     `json:"bytecode"`
	ABI      *ModuleABI `json:"abi"`
}

// Transaction is the subset of a user transaction the sampler cares about.
type Transaction struct {
	Version string `json:"version"`
	Hash    string `json:"hash"`
	Success bool   `json:"success"`
	Sender  string `json:"sender"`
	Payload struct {
		Type     string `json:"type"`
		Function string `json:"function"`
	} `json:"payload"`
}
