package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	WebSocket       Category = "WebSocket"
	MongoDB         Category = "MongoDB"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// RabbitMQ
	Connection SubCategory = "Connection"
	Reconnect  SubCategory = "Reconnect"
	Topology   SubCategory = "Topology"
	Publish    SubCategory = "Publish"
	Consume    SubCategory = "Consume"
	Callback   SubCategory = "Callback"

	// WebSocket
	Accept    SubCategory = "Accept"
	Room      SubCategory = "Room"
	Send      SubCategory = "Send"
	Receive   SubCategory = "Receive"
	Relay     SubCategory = "Relay"
	Keepalive SubCategory = "Keepalive"

	// MongoDB
	Insert SubCategory = "Insert"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	HostIp       ExtraKey = "HostIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	RequestBody  ExtraKey = "RequestBody"
	ResponseBody ExtraKey = "ResponseBody"
	ErrorMessage ExtraKey = "ErrorMessage"

	Service     ExtraKey = "Service"
	EventType   ExtraKey = "EventType"
	Exchange    ExtraKey = "Exchange"
	Queue       ExtraKey = "Queue"
	RoutingKey  ExtraKey = "RoutingKey"
	ConsumerTag ExtraKey = "ConsumerTag"
	Payload     ExtraKey = "Payload"
	Attempt     ExtraKey = "Attempt"
	UserID      ExtraKey = "UserID"
	RoomID      ExtraKey = "RoomID"
	FrameType   ExtraKey = "FrameType"
	Connections ExtraKey = "Connections"
	Recipients  ExtraKey = "Recipients"
)
