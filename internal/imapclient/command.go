package imapclient

import (
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/responses"
)

// idCommand sends an RFC 2971 ID command with a raw parenthesized list.
// Netease requires exactly ("name" "X" "version" "Y" "vendor" "Z"); the
// library's field formatter would emit unquoted atoms, which 163 rejects.
type idCommand struct {
	name    string
	version string
	vendor  string
}

func (cmd *idCommand) Command() *imap.Command {
	args := fmt.Sprintf(`("name" %q "version" %q "vendor" %q)`, cmd.name, cmd.version, cmd.vendor)
	return &imap.Command{
		Name:      "ID",
		Arguments: []interface{}{imap.RawString(args)},
	}
}

func sendClientID(c *client.Client, name, version, vendor string) error {
	status, err := c.Execute(&idCommand{name: name, version: version, vendor: vendor}, nil)
	if err != nil {
		return err
	}
	return status.Err()
}

// uidSearchSinceCommand sends "UID SEARCH N:*" at the protocol layer.
// The generic search path injects a CHARSET parameter some servers reject;
// this form returns UIDs directly.
type uidSearchSinceCommand struct {
	startUID uint32
}

func (cmd *uidSearchSinceCommand) Command() *imap.Command {
	return &imap.Command{
		Name:      "UID SEARCH",
		Arguments: []interface{}{imap.RawString(fmt.Sprintf("%d:*", cmd.startUID))},
	}
}

func rawUIDSearchSince(c *client.Client, startUID uint32) ([]uint32, error) {
	res := new(responses.Search)
	status, err := c.Execute(&uidSearchSinceCommand{startUID: startUID}, res)
	if err != nil {
		return nil, err
	}
	if err := status.Err(); err != nil {
		return nil, err
	}
	return res.Ids, nil
}
