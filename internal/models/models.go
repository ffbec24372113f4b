package models

import "time"

type NodeKind string

const (
	NodeFile   NodeKind = "file"
	NodeFolder NodeKind = "folder"
)

// TreeNode is one entry in a session's presentation hierarchy.
type TreeNode struct {
	Name     string     `json:"name"`
	Kind     NodeKind   `json:"kind"`
	Children []TreeNode `json:"children,omitempty"`
}

// DocumentSet holds a session's files and folder structure. The flat
// Files map is the content of record; Structure describes how clients
// present it. Every file leaf in Structure has an entry in Files and
// vice versa.
type DocumentSet struct {
	Files     map[string]string `json:"files"`
	Structure []TreeNode        `json:"structure"`
	CreatedAt time.Time         `json:"createdAt"`
}

func NewDocumentSet() DocumentSet {
	return DocumentSet{
		Files:     make(map[string]string),
		Structure: []TreeNode{},
		CreatedAt: time.Now().UTC(),
	}
}

// ApplyFileWrite overwrites the full content at path. A path not seen
// before gains a file leaf at the root of Structure, keeping the
// Files/Structure pairing intact. Empty content is a valid write.
func (d *DocumentSet) ApplyFileWrite(path, content string) {
	if d.Files == nil {
		d.Files = make(map[string]string)
	}
	_, existed := d.Files[path]
	d.Files[path] = content
	if !existed {
		d.Structure = append(d.Structure, TreeNode{Name: path, Kind: NodeFile})
	}
}

// Snapshot returns an independent copy of the files and structure so a
// caller can hand state to a client without aliasing live maps.
func (d *DocumentSet) Snapshot() DocumentSnapshot {
	files := make(map[string]string, len(d.Files))
	for p, c := range d.Files {
		files[p] = c
	}
	return DocumentSnapshot{Files: files, Structure: copyNodes(d.Structure)}
}

func copyNodes(nodes []TreeNode) []TreeNode {
	out := make([]TreeNode, len(nodes))
	for i, n := range nodes {
		out[i] = TreeNode{Name: n.Name, Kind: n.Kind}
		if len(n.Children) > 0 {
			out[i].Children = copyNodes(n.Children)
		}
	}
	return out
}

// DocumentSnapshot is the immutable view handed to a joining client.
type DocumentSnapshot struct {
	Files     map[string]string `json:"files"`
	Structure []TreeNode        `json:"structure"`
}

// Session is the persisted record for one invite code.
type Session struct {
	InviteCode string      `json:"inviteCode"`
	Docs       DocumentSet `json:"docs"`
	CreatedAt  time.Time   `json:"createdAt"`
}

/*** Wire protocol ***/

type WSFrame struct {
	Type string      `json:"type"` // "init","edit","fileChanged","participantJoined","participantLeft","error","warning"
	Data interface{} `json:"data"`
}

const (
	FrameInit              = "init"
	FrameEdit              = "edit"
	FrameFileChanged       = "fileChanged"
	FrameParticipantJoined = "participantJoined"
	FrameParticipantLeft   = "participantLeft"
	FrameError             = "error"
	FrameWarning           = "warning"
)

type InitPayload struct {
	InviteCode string            `json:"inviteCode"`
	Files      map[string]string `json:"files"`
	Structure  []TreeNode        `json:"structure"`
}

// FileEdit is both the inbound edit submission and the outbound
// fileChanged payload: a whole-document overwrite of one path.
type FileEdit struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type ParticipantPayload struct {
	ConnectionID string `json:"connectionId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

/*** REST surface ***/

type CreateSessionRequest struct {
	InviteCode string `json:"inviteCode,omitempty"`
}

type CreateSessionResponse struct {
	InviteCode string `json:"inviteCode"`
}

type SessionInfo struct {
	InviteCode string    `json:"inviteCode"`
	FileCount  int       `json:"fileCount"`
	CreatedAt  time.Time `json:"createdAt"`
}
