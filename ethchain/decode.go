package ethchain

import (
	"fmt"
	"strings"

	"code.chainsync.io/sync/cache"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// eventComponentValueSet is the world contract event this synchronizer
// understands: one write of one component's value for one entity.
const eventComponentValueSet = "ComponentValueSet"

// rawComponentValueSet mirrors the event's full ABI field set; UnpackLog
// requires struct fields for the indexed topics (ComponentId, Entity) even
// though this decoder re-derives their values directly from log.Topics.
type rawComponentValueSet struct {
	ComponentId ethcommon.Hash
	Entity      ethcommon.Hash
	Value       []byte
}

// Decoder turns raw Ethereum logs emitted by a world contract into
// ComponentUpdate records, using the contract's ABI to find the event
// topic and unpack its fields.
type Decoder struct {
	address ethcommon.Address
	parsed  abi.ABI
	bound   *bind.BoundContract
	eventID ethcommon.Hash
}

// NewDecoder parses worldContractABI (a JSON ABI, per SyncConfig) and
// prepares to decode ComponentValueSet events emitted by the contract at
// address.
func NewDecoder(address ethcommon.Address, worldContractABI string) (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(worldContractABI))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse world contract ABI: %w", err)
	}
	event, ok := parsed.Events[eventComponentValueSet]
	if !ok {
		return nil, fmt.Errorf("world contract ABI has no %s event", eventComponentValueSet)
	}

	return &Decoder{
		address: address,
		parsed:  parsed,
		bound:   bind.NewBoundContract(address, parsed, nil, nil, nil),
		eventID: event.ID,
	}, nil
}

// Address returns the world contract address this decoder is scoped to,
// for use in a FilterQuery alongside EventID.
func (d *Decoder) Address() ethcommon.Address {
	return d.address
}

func (d *Decoder) EventID() ethcommon.Hash {
	return d.eventID
}

// Decode converts a single log into a ComponentUpdate. txHash and
// blockNumber come straight from the log; lastEventInTx must be resolved
// by the caller, which alone knows whether this is the last log of its
// transaction within the range being fetched.
func (d *Decoder) Decode(log ethtypes.Log, lastEventInTx bool) (cache.ComponentUpdate, error) {
	if len(log.Topics) < 3 {
		return cache.ComponentUpdate{}, fmt.Errorf("%s log has %d topics, want at least 3", eventComponentValueSet, len(log.Topics))
	}

	var raw rawComponentValueSet
	if err := d.bound.UnpackLog(&raw, eventComponentValueSet, log); err != nil {
		return cache.ComponentUpdate{}, fmt.Errorf("couldn't unpack %s log: %w", eventComponentValueSet, err)
	}

	componentID := log.Topics[1]
	entityID := log.Topics[2]

	return cache.ComponentUpdate{
		Component:     componentID.Bytes(),
		Entity:        entityID.Bytes(),
		Value:         raw.Value,
		TxHash:        log.TxHash.Hex(),
		LastEventInTx: lastEventInTx,
		BlockNumber:   log.BlockNumber,
	}, nil
}
