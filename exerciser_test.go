package pst

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/commands"
	"github.com/leanovate/gopter/gen"
	"github.com/stretchr/testify/assert"
)

var testThingy *testing.T

const (
	leafCount  = 64
	uimax      = 99_999
	nSnapshots = 5
)

// expected models a version as a plain slice of leaves.
type expected struct {
	leaves   []int64
	snapshot [][]int64
}

type system struct {
	tree     *Tree[int64]
	root     Root
	store    Persist
	snapshot []Root
	cmdCount int
}

var (
	cmdCount = 0
	maxNodes = 0
	debug    = false
)

func progress(i interface{}) {
	if debug {
		fmt.Printf("%v\n", i)
	}
}

func currentLeaves(tree *Tree[int64], root Root) ([]int64, error) {
	res := make([]int64, tree.Size())
	for i := range res {
		v, err := tree.Get(root, i+1)
		if err != nil {
			return nil, err
		}
		res[i] = v
	}
	return res, nil
}

func commandRange(value uint) (int, int) {
	a := int(value)%leafCount + 1
	b := int(value/leafCount)%leafCount + 1
	return min(a, b), max(a, b)
}

func commandIndex(value uint) int {
	return int(value)%leafCount + 1
}

func failed(what string, result commands.Result) *gopter.PropResult {
	fmt.Printf("%s: %v\n", what, result)
	return &gopter.PropResult{Status: gopter.PropFalse}
}

var passed = &gopter.PropResult{Status: gopter.PropTrue}

var TotalCommand = &commands.ProtoCommand{
	Name: "Total",
	RunFunc: func(s commands.SystemUnderTest) commands.Result {
		sys := s.(*system)
		total, err := sys.tree.Total(sys.root)
		if err != nil {
			return err
		}
		sys.cmdCount++
		return total
	},
	NextStateFunc:    func(state commands.State) commands.State { return state },
	PreConditionFunc: func(state commands.State) bool { return true },
	PostConditionFunc: func(state commands.State, result commands.Result) *gopter.PropResult {
		var want int64
		for _, v := range state.(*expected).leaves {
			want += v
		}
		if result != want {
			fmt.Printf("totalPostCondition: expected=%d, actual=%v\n", want, result)
			return &gopter.PropResult{Status: gopter.PropFalse}
		}
		progress("Total")
		return passed
	},
}

var SaveLoadCommand = &commands.ProtoCommand{
	Name: "SaveLoad",
	RunFunc: func(s commands.SystemUnderTest) commands.Result {
		sys := s.(*system)
		saved, err := sys.tree.Save(ctx, sys.root)
		if err != nil {
			return fmt.Errorf("save: %w", err)
		}
		// reloading into the same arena is served by the node cache
		sys.root, err = sys.tree.Load(ctx, saved)
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		fresh, err := NewTree(NewArena[int64](0), leafCount, RangeSum[int64](),
			&Config[int64]{StoreImmutablePartsWith: sys.store})
		if err != nil {
			return err
		}
		root, err := fresh.Load(ctx, saved)
		if err != nil {
			return fmt.Errorf("load fresh: %w", err)
		}
		leaves, err := currentLeaves(fresh, root)
		if err != nil {
			return err
		}
		sys.cmdCount++
		return leaves
	},
	NextStateFunc:    func(state commands.State) commands.State { return state },
	PreConditionFunc: func(state commands.State) bool { return true },
	PostConditionFunc: func(state commands.State, result commands.Result) *gopter.PropResult {
		actual, ok := result.([]int64)
		if !ok {
			return failed("saveLoadPostCondition", result)
		}
		if want := state.(*expected).leaves; !reflect.DeepEqual(want, actual) {
			assert.Equal(testThingy, want, actual, "loaded leaves")
			return &gopter.PropResult{Status: gopter.PropFalse}
		}
		progress("SaveLoad")
		return passed
	},
}

type getCommand uint

func (value getCommand) Run(s commands.SystemUnderTest) commands.Result {
	sys := s.(*system)
	v, err := sys.tree.Get(sys.root, commandIndex(uint(value)))
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	sys.cmdCount++
	return v
}

func (value getCommand) NextState(state commands.State) commands.State {
	return state
}

func (value getCommand) PreCondition(state commands.State) bool {
	return true
}

func (value getCommand) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	want := state.(*expected).leaves[commandIndex(uint(value))-1]
	if result != want {
		fmt.Printf("getCommandPostCondition: (index=%d) expected=%d actual=%v\n", commandIndex(uint(value)), want, result)
		return &gopter.PropResult{Status: gopter.PropFalse}
	}
	progress(value)
	return passed
}

func (value getCommand) String() string {
	return fmt.Sprintf("Get(%d)", commandIndex(uint(value)))
}

var genGet = uintCommandGen(
	func(value uint) commands.Command { return getCommand(value) },
	func(command interface{}) uint { return uint(command.(getCommand)) })

type queryCommand uint

func (value queryCommand) Run(s commands.SystemUnderTest) commands.Result {
	sys := s.(*system)
	l, r := commandRange(uint(value))
	v, err := sys.tree.Query(sys.root, l, r)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	sys.cmdCount++
	return v
}

func (value queryCommand) NextState(state commands.State) commands.State {
	return state
}

func (value queryCommand) PreCondition(state commands.State) bool {
	return true
}

func (value queryCommand) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	l, r := commandRange(uint(value))
	var want int64
	for _, v := range state.(*expected).leaves[l-1 : r] {
		want += v
	}
	if result != want {
		fmt.Printf("queryCommandPostCondition: [%d, %d] expected=%d actual=%v\n", l, r, want, result)
		return &gopter.PropResult{Status: gopter.PropFalse}
	}
	progress(value)
	return passed
}

func (value queryCommand) String() string {
	l, r := commandRange(uint(value))
	return fmt.Sprintf("Query(%d,%d)", l, r)
}

var genQuery = uintCommandGen(
	func(value uint) commands.Command { return queryCommand(value) },
	func(command interface{}) uint { return uint(command.(queryCommand)) })

type updateCommand uint

func (value updateCommand) delta() int64 {
	return int64(value%11) - 5
}

func (value updateCommand) Run(s commands.SystemUnderTest) commands.Result {
	sys := s.(*system)
	root, err := sys.tree.Update(sys.root, commandIndex(uint(value)), value.delta())
	if err != nil {
		return err
	}
	sys.root = root
	sys.cmdCount++
	return nil
}

func (value updateCommand) NextState(state commands.State) commands.State {
	state.(*expected).leaves[commandIndex(uint(value))-1] += value.delta()
	return state
}

func (value updateCommand) PreCondition(state commands.State) bool {
	return true
}

func (value updateCommand) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	if result != nil {
		return failed("updateCommandPostCondition", result)
	}
	progress(value)
	return passed
}

func (value updateCommand) String() string {
	return fmt.Sprintf("Update(%d,%d)", commandIndex(uint(value)), value.delta())
}

var genUpdate = uintCommandGen(
	func(value uint) commands.Command { return updateCommand(value) },
	func(command interface{}) uint { return uint(command.(updateCommand)) })

type assignCommand uint

func (value assignCommand) Run(s commands.SystemUnderTest) commands.Result {
	sys := s.(*system)
	root, err := sys.tree.Assign(sys.root, commandIndex(uint(value)), int64(value%100))
	if err != nil {
		return err
	}
	sys.root = root
	sys.cmdCount++
	return nil
}

func (value assignCommand) NextState(state commands.State) commands.State {
	state.(*expected).leaves[commandIndex(uint(value))-1] = int64(value % 100)
	return state
}

func (value assignCommand) PreCondition(state commands.State) bool {
	return true
}

func (value assignCommand) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	if result != nil {
		return failed("assignCommandPostCondition", result)
	}
	progress(value)
	return passed
}

func (value assignCommand) String() string {
	return fmt.Sprintf("Assign(%d,%d)", commandIndex(uint(value)), value%100)
}

var genAssign = uintCommandGen(
	func(value uint) commands.Command { return assignCommand(value) },
	func(command interface{}) uint { return uint(command.(assignCommand)) })

type rangeAddCommand uint

func (value rangeAddCommand) delta() int64 {
	return int64(value%7) - 3
}

func (value rangeAddCommand) Run(s commands.SystemUnderTest) commands.Result {
	sys := s.(*system)
	l, r := commandRange(uint(value))
	root, err := sys.tree.RangeAdd(sys.root, l, r, value.delta())
	if err != nil {
		return err
	}
	sys.root = root
	sys.cmdCount++
	return nil
}

func (value rangeAddCommand) NextState(state commands.State) commands.State {
	l, r := commandRange(uint(value))
	leaves := state.(*expected).leaves
	for i := l; i <= r; i++ {
		leaves[i-1] += value.delta()
	}
	return state
}

func (value rangeAddCommand) PreCondition(state commands.State) bool {
	return true
}

func (value rangeAddCommand) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	if result != nil {
		return failed("rangeAddCommandPostCondition", result)
	}
	progress(value)
	return passed
}

func (value rangeAddCommand) String() string {
	l, r := commandRange(uint(value))
	return fmt.Sprintf("RangeAdd(%d,%d,%d)", l, r, value.delta())
}

var genRangeAdd = uintCommandGen(
	func(value uint) commands.Command { return rangeAddCommand(value) },
	func(command interface{}) uint { return uint(command.(rangeAddCommand)) })

type snapshotCommand uint

func (n snapshotCommand) Run(s commands.SystemUnderTest) commands.Result {
	sys := s.(*system)
	sys.snapshot[int(n)%nSnapshots] = sys.root
	return nil
}

func (n snapshotCommand) NextState(state commands.State) commands.State {
	s := state.(*expected)
	s.snapshot[int(n)%nSnapshots] = append([]int64(nil), s.leaves...)
	return s
}

func (n snapshotCommand) PreCondition(state commands.State) bool {
	return true
}

func (n snapshotCommand) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	if result != nil {
		return failed("snapshotPostCondition", result)
	}
	progress(n)
	return passed
}

func (n snapshotCommand) String() string {
	return fmt.Sprintf("Snapshot(%d)", int(n)%nSnapshots)
}

var genSnapshot = uintCommandGen(
	func(slot uint) commands.Command { return snapshotCommand(slot) },
	func(command interface{}) uint { return uint(command.(snapshotCommand)) })

// diffCommand checks both that a snapshot still holds its leaves and that
// DiffIter reports exactly the leaves changed since.
type diffCommand uint

type diffResult struct {
	old     []int64
	changes map[int][2]int64
}

func (n diffCommand) Run(s commands.SystemUnderTest) commands.Result {
	sys := s.(*system)
	old := sys.snapshot[int(n)%nSnapshots]
	changes := map[int][2]int64{}
	err := sys.tree.DiffIter(old, sys.root, func(index int, oldValue, newValue int64) (bool, error) {
		if _, dup := changes[index]; dup {
			return false, fmt.Errorf("index %d reported twice", index)
		}
		changes[index] = [2]int64{oldValue, newValue}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("diffIter: %w", err)
	}
	leaves, err := currentLeaves(sys.tree, old)
	if err != nil {
		return err
	}
	sys.cmdCount++
	return diffResult{old: leaves, changes: changes}
}

func (n diffCommand) NextState(state commands.State) commands.State {
	return state
}

func (n diffCommand) PreCondition(state commands.State) bool {
	return state.(*expected).snapshot[int(n)%nSnapshots] != nil
}

func (n diffCommand) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	actual, ok := result.(diffResult)
	if !ok {
		return failed("diff", result)
	}
	s := state.(*expected)
	old := s.snapshot[int(n)%nSnapshots]
	changes := map[int][2]int64{}
	for i, v := range s.leaves {
		if old[i] != v {
			changes[i+1] = [2]int64{old[i], v}
		}
	}
	if !reflect.DeepEqual(old, actual.old) {
		assert.Equal(testThingy, old, actual.old, "snapshot leaves")
		return &gopter.PropResult{Status: gopter.PropFalse}
	}
	if !reflect.DeepEqual(changes, actual.changes) {
		assert.Equal(testThingy, changes, actual.changes)
		return &gopter.PropResult{Status: gopter.PropFalse}
	}
	progress(n)
	return passed
}

func (n diffCommand) String() string {
	return fmt.Sprintf("Diff(%d)", int(n)%nSnapshots)
}

var genDiff = uintCommandGen(
	func(slot uint) commands.Command { return diffCommand(slot) },
	func(command interface{}) uint { return uint(command.(diffCommand)) })

func uintCommandGen(toCommand func(uint) commands.Command, fromCommand func(interface{}) uint) gopter.Gen {
	return gen.UIntRange(0, uimax).Map(func(value uint) commands.Command {
		return toCommand(value)
	}).WithShrinker(func(v interface{}) gopter.Shrink {
		return gen.UIntShrinker(fromCommand(v)).Map(func(value uint) commands.Command {
			return toCommand(value)
		})
	})
}

var treeCommands = &commands.ProtoCommands{
	NewSystemUnderTestFunc: func(initialState commands.State) commands.SystemUnderTest {
		store := NewInMemoryStore()
		tree, err := NewTree(NewArena[int64](0), leafCount, RangeSum[int64](), &Config[int64]{
			StoreImmutablePartsWith: store,
			NodeCache:               NewNodeCache(500),
			StoreConcurrency:        4,
		})
		if err != nil {
			return err
		}
		root, err := tree.Build(append([]int64(nil), initialState.(*expected).leaves...))
		if err != nil {
			return err
		}
		progress("NewSystem")
		return &system{
			tree:     tree,
			root:     root,
			store:    store,
			snapshot: make([]Root, nSnapshots),
		}
	},
	DestroySystemUnderTestFunc: func(s commands.SystemUnderTest) {
		sys := s.(*system)
		maxNodes = max(maxNodes, sys.tree.Arena().Len())
		cmdCount += sys.cmdCount
	},
	InitialStateGen: gen.SliceOfN(leafCount, gen.Int64Range(-100, 100)).Map(func(leaves []int64) *expected {
		return &expected{
			leaves:   leaves,
			snapshot: make([][]int64, nSnapshots),
		}
	}),
	InitialPreConditionFunc: func(state commands.State) bool {
		return len(state.(*expected).leaves) == leafCount
	},
	GenCommandFunc: func(state commands.State) gopter.Gen {
		return gen.Weighted(
			[]gen.WeightedGen{
				{Weight: 100, Gen: genUpdate},
				{Weight: 50, Gen: genAssign},
				{Weight: 50, Gen: genRangeAdd},
				{Weight: 100, Gen: genGet},
				{Weight: 50, Gen: genQuery},
				{Weight: 5, Gen: genSnapshot},
				{Weight: 5, Gen: genDiff},
				{Weight: 2, Gen: gen.Const(SaveLoadCommand)},
				{Weight: 20, Gen: gen.Const(TotalCommand)},
			},
		)
	},
}

func TestExerciser(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	if !testing.Short() {
		parameters.MaxSize = 1024
	}
	properties := gopter.NewProperties(parameters)
	properties.Property("pst exerciser", commands.Prop(treeCommands))
	testThingy = t
	properties.TestingRun(t)
	testThingy = nil
	if !t.Failed() {
		assert.Greater(t, maxNodes, 2*leafCount-1)
		fmt.Printf("most nodes in one arena: %d\n", maxNodes)
		fmt.Printf("successful commands: %d\n", cmdCount)
	}
}
