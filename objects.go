package lavalink

// Stats is the node-wide statistics push sent periodically over the
// event stream, also retrievable over REST.
type Stats struct {
	Players        int         `json:"players"`
	PlayingPlayers int         `json:"playingPlayers"`
	Uptime         int64       `json:"uptime"`
	Memory         Memory      `json:"memory"`
	CPU            CPU         `json:"cpu"`
	FrameStats     *FrameStats `json:"frameStats,omitempty"`
}

type Memory struct {
	Free       int64 `json:"free"`
	Used       int64 `json:"used"`
	Allocated  int64 `json:"allocated"`
	Reservable int64 `json:"reservable"`
}

type CPU struct {
	Cores        int     `json:"cores"`
	SystemLoad   float64 `json:"systemLoad"`
	LavalinkLoad float64 `json:"lavalinkLoad"`
}

type FrameStats struct {
	Sent    int `json:"sent"`
	Nulled  int `json:"nulled"`
	Deficit int `json:"deficit"`
}

// PlayerState carries the live playback state reported by the node.
type PlayerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int   `json:"ping"`
}

// VoiceState is the reconciled voice-session document forwarded to the
// node once both halves of the Discord voice handshake have arrived.
type VoiceState struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
	Endpoint  string `json:"endpoint"`
}

// PlayerInfo is the node's acknowledged player state returned by
// control channel requests.
type PlayerInfo struct {
	GuildID string      `json:"guildId"`
	Track   *Track      `json:"track"`
	Volume  int         `json:"volume"`
	Paused  bool        `json:"paused"`
	State   PlayerState `json:"state"`
	Voice   VoiceState  `json:"voice"`
	Filters *Filters    `json:"filters,omitempty"`
}

// connectionInfo is the pending half of a voice handshake: the
// membership signal held until the matching token signal arrives.
type connectionInfo struct {
	GuildID   string
	SessionID string
	ChannelID string
}

// Info describes the remote node build, retrieved over REST.
type Info struct {
	Version        InfoVersion  `json:"version"`
	BuildTime      int64        `json:"buildTime"`
	Git            InfoGit      `json:"git"`
	JVM            string       `json:"jvm"`
	Lavaplayer     string       `json:"lavaplayer"`
	SourceManagers []string     `json:"sourceManagers"`
	Filters        []string     `json:"filters"`
	Plugins        []InfoPlugin `json:"plugins"`
}

type InfoVersion struct {
	Semver     string `json:"semver"`
	Major      int    `json:"major"`
	Minor      int    `json:"minor"`
	Patch      int    `json:"patch"`
	PreRelease string `json:"preRelease,omitempty"`
	Build      string `json:"build,omitempty"`
}

type InfoGit struct {
	Branch     string `json:"branch"`
	Commit     string `json:"commit"`
	CommitTime int64  `json:"commitTime"`
}

type InfoPlugin struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RoutePlannerStatus is the node's route planner state. Fields are
// plugin-dependent, so details stay raw.
type RoutePlannerStatus struct {
	Class   string                 `json:"class"`
	Details map[string]interface{} `json:"details"`
}
