// Package kpl frames and unframes Kinesis Producer Library (KPL) aggregated records, using
// the AggregatedRecord protobuf types from the kinesis-aggregation library.
//
// An aggregated record is laid out as:
//
//	magic (4 bytes) | protobuf AggregatedRecord | md5 digest of the protobuf bytes (16 bytes)
//
// Records without the magic prefix are regular, non-aggregated, records.
package kpl

import (
	"bytes"
	"crypto/md5"
	"errors"
	"fmt"

	"github.com/awslabs/kinesis-aggregation/go/v2/records"
	"github.com/golang/protobuf/proto"
)

var (
	ErrChecksumMismatch   = errors.New("aggregated record checksum mismatch")
	ErrMalformedAggregate = errors.New("malformed aggregated record")
	ErrNoRecords          = errors.New("no records to aggregate")
)

// Magic is the prefix identifying a KPL aggregated record.
var Magic = []byte{0xF3, 0x89, 0x9A, 0xC2}

const digestSize = md5.Size

// UserRecord is a single record packed inside an aggregated record.
type UserRecord struct {
	PartitionKey    string
	ExplicitHashKey string
	Data            []byte
}

// IsAggregated returns true if data starts with the KPL magic and is longer than the
// magic and the trailing digest together.
func IsAggregated(data []byte) bool {
	return len(data) > len(Magic)+digestSize && bytes.Equal(data[:len(Magic)], Magic)
}

// Deaggregator splits KPL aggregated records into the data blobs of their user records.
// It is stateless and safe for concurrent use.
type Deaggregator struct{}

func NewDeaggregator() *Deaggregator {
	return &Deaggregator{}
}

// Deaggregate returns the data of each user record in data, in the order they were aggregated.
// Non-aggregated data is returned as-is as a single record.
func (d *Deaggregator) Deaggregate(data []byte) ([][]byte, error) {
	userRecords, err := Unpack(data)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(userRecords))
	for _, r := range userRecords {
		out = append(out, r.Data)
	}
	return out, nil
}

// Unpack decodes all user records, including their keys, from data.
// Non-aggregated data is returned as a single UserRecord without keys.
func Unpack(data []byte) ([]UserRecord, error) {

	if !IsAggregated(data) {
		return []UserRecord{{Data: data}}, nil
	}

	message := data[len(Magic) : len(data)-digestSize]
	digest := data[len(data)-digestSize:]
	sum := md5.Sum(message)
	if !bytes.Equal(sum[:], digest) {
		return nil, ErrChecksumMismatch
	}

	return decodeAggregatedRecord(message)
}

func decodeAggregatedRecord(message []byte) ([]UserRecord, error) {

	var agg records.AggregatedRecord
	if err := proto.Unmarshal(message, &agg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAggregate, err)
	}

	partitionKeys := agg.GetPartitionKeyTable()
	explicitHashKeys := agg.GetExplicitHashKeyTable()

	userRecords := make([]UserRecord, 0, len(agg.GetRecords()))
	for i, r := range agg.GetRecords() {
		if r.PartitionKeyIndex == nil || r.Data == nil {
			return nil, fmt.Errorf("%w: record %d missing required fields", ErrMalformedAggregate, i)
		}
		pki := r.GetPartitionKeyIndex()
		if pki >= uint64(len(partitionKeys)) {
			return nil, fmt.Errorf("%w: record %d has partition key index %d, table size %d",
				ErrMalformedAggregate, i, pki, len(partitionKeys))
		}
		ur := UserRecord{
			PartitionKey: partitionKeys[pki],
			Data:         r.GetData(),
		}
		if r.ExplicitHashKeyIndex != nil {
			ehki := r.GetExplicitHashKeyIndex()
			if ehki >= uint64(len(explicitHashKeys)) {
				return nil, fmt.Errorf("%w: record %d has explicit hash key index %d, table size %d",
					ErrMalformedAggregate, i, ehki, len(explicitHashKeys))
			}
			ur.ExplicitHashKey = explicitHashKeys[ehki]
		}
		userRecords = append(userRecords, ur)
	}
	return userRecords, nil
}

// Aggregate packs the provided user records into a single KPL aggregated record.
// Partition and explicit hash keys are deduplicated into the key tables.
func Aggregate(userRecords []UserRecord) ([]byte, error) {

	if len(userRecords) == 0 {
		return nil, ErrNoRecords
	}

	var (
		agg      records.AggregatedRecord
		pkIndex  = make(map[string]uint64)
		ehkIndex = make(map[string]uint64)
	)

	for _, ur := range userRecords {
		pki, ok := pkIndex[ur.PartitionKey]
		if !ok {
			pki = uint64(len(agg.PartitionKeyTable))
			pkIndex[ur.PartitionKey] = pki
			agg.PartitionKeyTable = append(agg.PartitionKeyTable, ur.PartitionKey)
		}

		r := &records.Record{
			PartitionKeyIndex: proto.Uint64(pki),
			Data:              ur.Data,
		}
		if r.Data == nil {
			r.Data = []byte{}
		}

		if ur.ExplicitHashKey != "" {
			ehki, ok := ehkIndex[ur.ExplicitHashKey]
			if !ok {
				ehki = uint64(len(agg.ExplicitHashKeyTable))
				ehkIndex[ur.ExplicitHashKey] = ehki
				agg.ExplicitHashKeyTable = append(agg.ExplicitHashKeyTable, ur.ExplicitHashKey)
			}
			r.ExplicitHashKeyIndex = proto.Uint64(ehki)
		}
		agg.Records = append(agg.Records, r)
	}

	message, err := proto.Marshal(&agg)
	if err != nil {
		return nil, err
	}

	sum := md5.Sum(message)
	out := make([]byte, 0, len(Magic)+len(message)+digestSize)
	out = append(out, Magic...)
	out = append(out, message...)
	out = append(out, sum[:]...)
	return out, nil
}
