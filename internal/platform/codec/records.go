package codec

import (
	"WCKV/internal/domain"
)

const (
	flagValue     byte = 0
	flagTombstone byte = 1
)

// DbKeyFields appends key, column family and column as VAR fields.
func DbKeyFields(list *BytesList, key domain.DbKey) *BytesList {
	return list.AppendVarBytes(key.Key).
		AppendVarStr(key.ColumnFamily).
		AppendVarStr(key.Column)
}

func ReadDbKey(r *Reader) (domain.DbKey, error) {
	key, err := r.VarBytes()
	if err != nil {
		return domain.DbKey{}, err
	}
	cf, err := r.VarStr()
	if err != nil {
		return domain.DbKey{}, err
	}
	column, err := r.VarStr()
	if err != nil {
		return domain.DbKey{}, err
	}
	return domain.NewDbKey(key, cf, column), nil
}

func EncodeDbKey(key domain.DbKey) ([]byte, error) {
	return DbKeyFields(NewRawBytesList(), key).ToBytes()
}

// DbIndexFields appends a DbKey followed by the tombstone flag and the value pointer.
func DbIndexFields(list *BytesList, index domain.DbIndex) *BytesList {
	flag := flagValue
	if index.Tombstone {
		flag = flagTombstone
	}
	return DbKeyFields(list, index.Key).
		AppendRawByte(flag).
		AppendRawLong(index.ValueGlobalIndex)
}

func ReadDbIndex(r *Reader) (domain.DbIndex, error) {
	key, err := ReadDbKey(r)
	if err != nil {
		return domain.DbIndex{}, err
	}
	flag, err := r.Byte()
	if err != nil {
		return domain.DbIndex{}, err
	}
	globalIndex, err := r.Long()
	if err != nil {
		return domain.DbIndex{}, err
	}
	return domain.DbIndex{
		Key:              key,
		ValueGlobalIndex: globalIndex,
		Tombstone:        flag == flagTombstone,
	}, nil
}

// EncodeMutation renders a mutation without its id, which travels separately
// as the log entry's extra data.
func EncodeMutation(m domain.Mutation) ([]byte, error) {
	list := NewRawBytesList().
		AppendRawByte(byte(m.Kind)).
		AppendRawLong(m.Timestamp).
		AppendVarBytes(m.Key).
		AppendVarStr(m.ColumnFamily)
	for _, v := range m.Values {
		flag := flagValue
		if v.Tombstone() {
			flag = flagTombstone
		}
		list.AppendVarStr(v.Column()).AppendRawByte(flag).AppendVarBytes(v.Value())
	}
	return list.ToBytes()
}

func DecodeMutation(id string, data []byte) (domain.Mutation, error) {
	r := NewReader(data)
	kind, err := r.Byte()
	if err != nil {
		return domain.Mutation{}, err
	}
	if kind != byte(domain.MutationInsert) && kind != byte(domain.MutationDelete) {
		return domain.Mutation{}, domain.CorruptStorage("unknown mutation kind %d", kind)
	}
	timestamp, err := r.Long()
	if err != nil {
		return domain.Mutation{}, err
	}
	key, err := r.VarBytes()
	if err != nil {
		return domain.Mutation{}, err
	}
	cf, err := r.VarStr()
	if err != nil {
		return domain.Mutation{}, err
	}
	m := domain.Mutation{
		Id:           id,
		Kind:         domain.MutationKind(kind),
		Key:          key,
		ColumnFamily: cf,
		Timestamp:    timestamp,
	}
	for !r.IsOver() {
		column, err := r.VarStr()
		if err != nil {
			return domain.Mutation{}, err
		}
		flag, err := r.Byte()
		if err != nil {
			return domain.Mutation{}, err
		}
		value, err := r.VarBytes()
		if err != nil {
			return domain.Mutation{}, err
		}
		if flag == flagTombstone {
			m.AddValue(domain.NewTombstone(column))
		} else {
			m.AddValue(domain.NewDbValue(column, value))
		}
	}
	return m, nil
}
