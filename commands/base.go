package commands

// BaseCommand holds the fields every command carries. It is embedded by
// concrete commands and never marshalled on its own.
type BaseCommand struct {
	ID               int32
	ResponseRequired bool
}

// Base gives marshallers access to the shared fields of any command.
func (c *BaseCommand) Base() *BaseCommand { return c }

func (c *BaseCommand) CommandID() int32                  { return c.ID }
func (c *BaseCommand) SetCommandID(id int32)             { c.ID = id }
func (c *BaseCommand) IsResponseRequired() bool          { return c.ResponseRequired }
func (c *BaseCommand) SetResponseRequired(required bool) { c.ResponseRequired = required }

func (c *BaseCommand) IsResponse() bool       { return false }
func (c *BaseCommand) IsMessage() bool        { return false }
func (c *BaseCommand) IsWireFormatInfo() bool { return false }
func (c *BaseCommand) IsKeepAliveInfo() bool  { return false }
func (c *BaseCommand) IsShutdownInfo() bool   { return false }

func (c *BaseCommand) dumpFields(d *dumper) *dumper {
	return d.add("commandId", c.ID).add("responseRequired", c.ResponseRequired)
}

// KeepAliveInfo is exchanged periodically to detect dead peers.
type KeepAliveInfo struct {
	BaseCommand
}

func (c *KeepAliveInfo) DataStructureType() byte { return TypeKeepAliveInfo }
func (c *KeepAliveInfo) IsKeepAliveInfo() bool   { return true }

func (c *KeepAliveInfo) Clone() DataStructure {
	cp := *c
	return &cp
}

func (c *KeepAliveInfo) Equals(other DataStructure) bool {
	o, ok := other.(*KeepAliveInfo)
	return ok && o != nil && c.BaseCommand == o.BaseCommand
}

func (c *KeepAliveInfo) String() string {
	return c.dumpFields(dump("KeepAliveInfo")).String()
}

// ShutdownInfo announces an orderly shutdown of the sender.
type ShutdownInfo struct {
	BaseCommand
}

func (c *ShutdownInfo) DataStructureType() byte { return TypeShutdownInfo }
func (c *ShutdownInfo) IsShutdownInfo() bool    { return true }

func (c *ShutdownInfo) Clone() DataStructure {
	cp := *c
	return &cp
}

func (c *ShutdownInfo) Equals(other DataStructure) bool {
	o, ok := other.(*ShutdownInfo)
	return ok && o != nil && c.BaseCommand == o.BaseCommand
}

func (c *ShutdownInfo) String() string {
	return c.dumpFields(dump("ShutdownInfo")).String()
}

// RemoveInfo asks the peer to dispose of the object identified by ObjectID.
type RemoveInfo struct {
	BaseCommand
	ObjectID DataStructure
}

func (c *RemoveInfo) DataStructureType() byte { return TypeRemoveInfo }

func (c *RemoveInfo) Clone() DataStructure {
	cp := *c
	cp.ObjectID = cloneAs(c.ObjectID)
	return &cp
}

func (c *RemoveInfo) Equals(other DataStructure) bool {
	o, ok := other.(*RemoveInfo)
	return ok && o != nil && c.BaseCommand == o.BaseCommand && Equal(c.ObjectID, o.ObjectID)
}

func (c *RemoveInfo) String() string {
	return c.dumpFields(dump("RemoveInfo")).add("objectId", c.ObjectID).String()
}

// Response answers the request whose command id is CorrelationID.
type Response struct {
	BaseCommand
	CorrelationID int32
}

func (c *Response) DataStructureType() byte { return TypeResponse }
func (c *Response) IsResponse() bool        { return true }
func (c *Response) Correlation() int32      { return c.CorrelationID }
func (c *Response) BaseResponse() *Response { return c }

func (c *Response) Clone() DataStructure {
	cp := *c
	return &cp
}

func (c *Response) Equals(other DataStructure) bool {
	o, ok := other.(*Response)
	return ok && o != nil && *c == *o
}

func (c *Response) String() string {
	return c.dumpFields(dump("Response")).add("correlationId", c.CorrelationID).String()
}

// ExceptionResponse is a Response reporting a broker-side failure.
type ExceptionResponse struct {
	Response
	Exception *BrokerError
}

func (c *ExceptionResponse) DataStructureType() byte { return TypeExceptionResponse }

func (c *ExceptionResponse) Clone() DataStructure {
	cp := *c
	cp.Exception = c.Exception.Clone()
	return &cp
}

func (c *ExceptionResponse) Equals(other DataStructure) bool {
	o, ok := other.(*ExceptionResponse)
	return ok && o != nil && c.Response == o.Response && c.Exception.Equal(o.Exception)
}

func (c *ExceptionResponse) String() string {
	return c.dumpFields(dump("ExceptionResponse")).
		add("correlationId", c.CorrelationID).
		add("exception", c.Exception).
		String()
}

// PartialCommand carries one fragment of a command too large for a single frame.
// Its wire form has no responseRequired field.
type PartialCommand struct {
	BaseCommand
	Data []byte
}

func (c *PartialCommand) DataStructureType() byte        { return TypePartialCommand }
func (c *PartialCommand) BasePartial() *PartialCommand { return c }

// A fragment never asks for a response.
func (c *PartialCommand) IsResponseRequired() bool { return false }
func (c *PartialCommand) SetResponseRequired(bool) {}

func (c *PartialCommand) Clone() DataStructure {
	cp := *c
	cp.Data = cloneBytes(c.Data)
	return &cp
}

func (c *PartialCommand) Equals(other DataStructure) bool {
	o, ok := other.(*PartialCommand)
	return ok && o != nil && c.equalPartial(o)
}

func (c *PartialCommand) equalPartial(o *PartialCommand) bool {
	return c.ID == o.ID && equalBytes(c.Data, o.Data)
}

func (c *PartialCommand) String() string {
	return dump("PartialCommand").add("commandId", c.ID).add("data", c.Data).String()
}

// LastPartialCommand is the final fragment of a split command.
type LastPartialCommand struct {
	PartialCommand
}

func (c *LastPartialCommand) DataStructureType() byte { return TypeLastPartialCommand }

func (c *LastPartialCommand) Clone() DataStructure {
	cp := *c
	cp.Data = cloneBytes(c.Data)
	return &cp
}

func (c *LastPartialCommand) Equals(other DataStructure) bool {
	o, ok := other.(*LastPartialCommand)
	return ok && o != nil && c.equalPartial(&o.PartialCommand)
}

func (c *LastPartialCommand) String() string {
	return dump("LastPartialCommand").add("commandId", c.ID).add("data", c.Data).String()
}
