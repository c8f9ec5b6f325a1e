package psm

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/findy-network/findy-common-go/crypto"
	"github.com/findy-network/findy-common-go/crypto/db"
	"github.com/golang/glog"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

var (
	buckets = [][]byte{
		{BucketPSM},
		{BucketPairwise},
		{BucketIssueCred},
		{BucketPresentProof},
	}

	lk        sync.RWMutex
	theCipher *crypto.Cipher
	mgdDB     db.Handle
)

// Open opens the database by name of the file. The key is hex encoded AES
// key. If it's empty the data is stored as plain text. It isn't thread safe!
func Open(filename, key string) (err error) {
	defer err2.Handle(&err, "psm db open")

	var cipher *crypto.Cipher
	if key != "" {
		cipher = crypto.NewCipher(try.To1(hex.DecodeString(key)))
	}

	lk.Lock()
	defer lk.Unlock()

	if mgdDB != nil {
		glog.Warningf("psm database already open, reopen with %s", filename)
		try.To(mgdDB.Close())
	}
	theCipher = cipher
	// this will not open the file handle to db, just initializes it
	mgdDB = db.New(db.Cfg{
		Filename:   filename,
		Buckets:    buckets,
		BackupName: filename + "_backup",
	})
	return nil
}

func Close() {
	lk.Lock()
	defer lk.Unlock()

	if mgdDB == nil {
		return
	}
	if err := mgdDB.Close(); err != nil {
		glog.Errorln("psm db close:", err)
	}
	mgdDB = nil
}

func notFound(k StateKey) error {
	return fmt.Errorf("%w: %s", storage.ErrDataNotFound, k)
}

func addData(key []byte, value []byte, bucketID byte) (err error) {
	lk.RLock()
	defer lk.RUnlock()

	return mgdDB.AddKeyValueToBucket(buckets[bucketID],
		&db.Data{
			Data: value,
			Read: encrypt,
		},
		&db.Data{
			Data: key,
			Read: hash,
		},
	)
}

// get executes a read transaction by a key and a bucket. Instead of returning
// the data, it uses lambda for the result transport to prevent cloning the byte
// slice.
func get(
	k StateKey,
	bucketID byte,
	use func(d []byte),
) (
	found bool,
	err error,
) {
	lk.RLock()
	defer lk.RUnlock()

	value := &db.Data{
		Write: decrypt,
		Use: func(d []byte) interface{} {
			use(d)
			return nil
		},
	}
	return mgdDB.GetKeyValueFromBucket(buckets[bucketID],
		&db.Data{
			Data: k.Data(),
			Read: hash,
		},
		value)
}

// all calls use for every value in the bucket.
func all(bucketID byte, use func(d []byte)) (err error) {
	lk.RLock()
	defer lk.RUnlock()

	_, err = mgdDB.GetAllValuesFromBucket(buckets[bucketID], decrypt,
		func(d []byte) []byte {
			use(d)
			return d
		})
	return err
}

func rm(k StateKey, bucketID byte) (err error) {
	lk.RLock()
	defer lk.RUnlock()

	return mgdDB.RmKeyValueFromBucket(buckets[bucketID],
		&db.Data{
			Data: k.Data(),
			Read: hash,
		})
}

func AddPSM(p *PSM) (err error) {
	defer err2.Handle(&err, "add psm")
	return addData(p.Key.Data(), p.Data(), BucketPSM)
}

// GetPSM returns the PSM or error wrapping storage.ErrDataNotFound.
func GetPSM(key StateKey) (m *PSM, err error) {
	defer err2.Handle(&err, "get psm")

	found := try.To1(get(key, BucketPSM, func(d []byte) {
		m = NewPSM(d)
	}))
	if !found || m == nil {
		return nil, notFound(key)
	}
	return m, nil
}

// FindPSM is GetPSM which checks that the PSM is the right kind.
func FindPSM(kind Kind, key StateKey) (m *PSM, err error) {
	m, err = GetPSM(key)
	if err != nil {
		return nil, err
	}
	if m.Kind != kind {
		return nil, fmt.Errorf("%w: %s is %s not %s",
			storage.ErrDataNotFound, key, m.Kind, kind)
	}
	return m, nil
}

func IsPSMReady(key StateKey) (yes bool, err error) {
	defer err2.Handle(&err, "is ready")

	m := try.To1(GetPSM(key))
	return m.IsReady(), nil
}

// AllPSM returns the agent's PSMs which are updated after the tsSince. If
// tsSince is nil all of the agent's PSMs are returned.
func AllPSM(did string, tsSince *int64) (m []PSM, err error) {
	defer err2.Handle(&err, "all psm")

	m = make([]PSM, 0, 12)
	try.To(all(BucketPSM, func(d []byte) {
		p := NewPSM(d)
		if p.Key.DID != did {
			return
		}
		if tsSince != nil && p.Timestamp() < *tsSince {
			return
		}
		m = append(m, *p)
	}))
	return m, nil
}

// RmPSM removes the PSM and its rep.
func RmPSM(p *PSM) (err error) {
	defer err2.Handle(&err, "rm psm")

	glog.V(1).Infoln("--- rm PSM:", p.Key)
	repKey := p.Key
	if p.Kind == KindConnection {
		repKey.Nonce = p.ConnID
	}
	if repKey.Nonce != "" {
		try.To(rm(repKey, bucketForKind(p.Kind)))
	}
	return rm(p.Key, BucketPSM)
}

// RmReadyBefore removes all ready PSMs which last state is older than ts. It
// returns the number of removed PSMs.
func RmReadyBefore(ts int64) (count int, err error) {
	defer err2.Handle(&err, "rm ready psm")

	old := make([]PSM, 0, 12)
	try.To(all(BucketPSM, func(d []byte) {
		p := NewPSM(d)
		if p.IsReady() && p.Timestamp() < ts {
			old = append(old, *p)
		}
	}))
	for i := range old {
		if old[i].Kind == KindConnection {
			// connections are kept, only the protocol history goes
			try.To(rm(old[i].Key, BucketPSM))
		} else {
			try.To(RmPSM(&old[i]))
		}
		count++
	}
	return count, nil
}

func AddRep(rep Rep) (err error) {
	defer err2.Handle(&err, "add rep")
	return addData(rep.Key().Data(), rep.Data(), rep.Type())
}

// GetRep returns the rep or error wrapping storage.ErrDataNotFound.
func GetRep(t byte, k StateKey) (rep Rep, err error) {
	defer err2.Handle(&err, "get rep")

	found := try.To1(get(k, t, func(d []byte) {
		rep = Creator.NewRep(t, d)
	}))
	if !found || rep == nil {
		return nil, notFound(k)
	}
	return rep, nil
}

// AllReps returns the agent's reps of the type.
func AllReps(t byte, did string) (reps []Rep, err error) {
	defer err2.Handle(&err, "all reps")

	reps = make([]Rep, 0, 12)
	try.To(all(t, func(d []byte) {
		rep := Creator.NewRep(t, d)
		if rep != nil && rep.Key().DID == did {
			reps = append(reps, rep)
		}
	}))
	return reps, nil
}

func GetPairwiseRep(k StateKey) (m *PairwiseRep, err error) {
	rep, err := GetRep(BucketPairwise, k)
	if err != nil {
		return nil, err
	}
	return rep.(*PairwiseRep), nil
}

func GetIssueCredRep(k StateKey) (m *IssueCredRep, err error) {
	rep, err := GetRep(BucketIssueCred, k)
	if err != nil {
		return nil, err
	}
	return rep.(*IssueCredRep), nil
}

func GetPresentProofRep(k StateKey) (m *PresentProofRep, err error) {
	rep, err := GetRep(BucketPresentProof, k)
	if err != nil {
		return nil, err
	}
	return rep.(*PresentProofRep), nil
}

// all of the following has same signature. They also panic on error

// hash makes the cryptographic hash of the map key value. This prevents us to
// store key value index (DID, handle) to the DB as plain text.
func hash(key []byte) (k []byte) {
	if theCipher != nil {
		h := md5.Sum(key)
		return h[:]
	}
	return append(key[:0:0], key...)
}

// encrypt encrypts the actual value when data is stored to the DB.
func encrypt(value []byte) (k []byte) {
	if theCipher != nil {
		return theCipher.TryEncrypt(value)
	}
	return append(value[:0:0], value...)
}

// decrypt decrypts the actual value when data is retrieved from the DB.
func decrypt(value []byte) (k []byte) {
	if theCipher != nil {
		return theCipher.TryDecrypt(value)
	}
	return append(value[:0:0], value...)
}
