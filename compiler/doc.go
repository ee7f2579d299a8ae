/*

Process of compilation

Class File (yaml) ->
	irfile ->
Intermediate Representation (ir) ->
	cfg ->
Control Flow Graph (cfg) ->
	liveness ->
USE/DEF/IN/OUT Sets (liveness) ->
	regalloc ->
Register Assignment (ir.VarTable) ->
	jasmin ->
Jasmin Assembler Text ->
	jasmin assembler (external) ->
Class File (bytecode)

Register allocation is skipped with negative back.Config.Registers:
the naive var table (one register per variable) goes straight to jasmin.

*/
package compiler
